// Package agekey derives and generates age keys for the secrets registry.
package agekey

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ssh"
)

var (
	ErrInvalidKey         = errors.New("invalid SSH public key")
	ErrUnsupportedKeyType = errors.New("only ssh-ed25519 keys convert to age X25519 recipients")
)

const recipientHRP = "age"

// FromSSHPublicKey converts an ssh-ed25519 public key in authorized-keys form
// to the native age X25519 recipient ("age1...") for the same key pair, the
// way ssh-to-age does.
func FromSSHPublicKey(authorizedKey string) (string, error) {
	authorizedKey = strings.TrimSpace(authorizedKey)

	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if pub.Type() != ssh.KeyAlgoED25519 {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedKeyType, pub.Type())
	}
	if _, err := agessh.ParseRecipient(authorizedKey); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	cryptoPub, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return "", fmt.Errorf("%w: key does not expose its raw form", ErrInvalidKey)
	}
	edPub, ok := cryptoPub.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: got %T", ErrUnsupportedKeyType, cryptoPub.CryptoPublicKey())
	}

	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	recipient, err := encodeBech32(recipientHRP, point.BytesMontgomery())
	if err != nil {
		return "", fmt.Errorf("encoding age recipient: %w", err)
	}
	if _, err := age.ParseX25519Recipient(recipient); err != nil {
		return "", fmt.Errorf("validating age recipient: %w", err)
	}
	return recipient, nil
}

func encodeBech32(hrp string, key []byte) (string, error) {
	data, err := bech32.ConvertBits(key, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}
