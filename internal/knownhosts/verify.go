package knownhosts

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/crypto/ssh"
	xknownhosts "golang.org/x/crypto/ssh/knownhosts"
)

// Verify checks that the store at storePath trusts key for the endpoint,
// using the same matching rules OpenSSH applies.
func Verify(storePath, destination string, port uint16, key ssh.PublicKey) error {
	callback, err := xknownhosts.New(storePath)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrIO, storePath, err)
	}

	address := net.JoinHostPort(destination, strconv.Itoa(int(port)))
	ip := net.ParseIP(destination)
	if ip == nil {
		ip = net.IPv4zero
	}
	remote := &net.TCPAddr{IP: ip, Port: int(port)}

	err = callback(address, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *xknownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) == 0 {
			return fmt.Errorf("%w: no entry for %s", ErrKeyNotTrusted, Prefix(destination, port))
		}
		return fmt.Errorf("%w: %s presents a different key than the %d recorded", ErrKeyNotTrusted, Prefix(destination, port), len(keyErr.Want))
	}
	var revoked *xknownhosts.RevokedError
	if errors.As(err, &revoked) {
		return fmt.Errorf("%w: key for %s is revoked", ErrKeyNotTrusted, Prefix(destination, port))
	}
	return fmt.Errorf("%w: %v", ErrKeyNotTrusted, err)
}

// VerifyText is Verify for a key in OpenSSH authorized-keys text form.
func VerifyText(storePath, destination string, port uint16, publicKey string) error {
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return Verify(storePath, destination, port, key)
}
