package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/melbahja/goph"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// ErrPassphraseRequired is returned (wrapped in ErrAuth) when a private key
// is encrypted and no passphrase was supplied.
var ErrPassphraseRequired = errors.New("private key is encrypted and needs a passphrase")

type CredentialKind string

const (
	KindAgent     CredentialKind = "agent"
	KindPassword  CredentialKind = "password"
	KindPublicKey CredentialKind = "public-key"
)

// Credential is one way of proving identity to the remote. A Session tries
// exactly one Credential per Authenticate call.
type Credential interface {
	Kind() CredentialKind
	// auth returns the methods for a single attempt and a release func for
	// anything held open while authenticating.
	auth() (goph.Auth, func(), error)
}

// AgentCredential signs with keys held by a running ssh-agent. An empty
// SocketPath falls back to SSH_AUTH_SOCK.
type AgentCredential struct {
	SocketPath string
}

func (AgentCredential) Kind() CredentialKind { return KindAgent }

func (c AgentCredential) auth() (goph.Auth, func(), error) {
	socket := c.SocketPath
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket == "" {
		return nil, nil, fmt.Errorf("%w: SSH_AUTH_SOCK is not set", ErrNoCredential)
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to ssh-agent at %s: %w", socket, err)
	}
	client := agent.NewClient(conn)
	return goph.Auth{ssh.PublicKeysCallback(client.Signers)}, func() { conn.Close() }, nil
}

type PasswordCredential struct {
	Password string
}

func (PasswordCredential) Kind() CredentialKind { return KindPassword }

func (c PasswordCredential) auth() (goph.Auth, func(), error) {
	return goph.Password(c.Password), func() {}, nil
}

// PublicKeyCredential authenticates with a key pair on disk. PrivateKeyPath
// defaults to PublicKeyPath without its ".pub" suffix. When PublicKeyPath is
// set it must match the private key.
type PublicKeyCredential struct {
	PublicKeyPath  string
	PrivateKeyPath string
	Passphrase     string
}

func (PublicKeyCredential) Kind() CredentialKind { return KindPublicKey }

func (c PublicKeyCredential) privateKeyPath() string {
	if c.PrivateKeyPath != "" {
		return c.PrivateKeyPath
	}
	return strings.TrimSuffix(c.PublicKeyPath, ".pub")
}

func (c PublicKeyCredential) auth() (goph.Auth, func(), error) {
	keyPath := c.privateKeyPath()
	if keyPath == "" {
		return nil, nil, fmt.Errorf("%w: no key path", ErrNoCredential)
	}

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key: %w", err)
	}

	var signer ssh.Signer
	if c.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(c.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, nil, fmt.Errorf("%s: %w", keyPath, ErrPassphraseRequired)
		}
		return nil, nil, fmt.Errorf("failed to parse private key %s: %w", keyPath, err)
	}

	if c.PublicKeyPath != "" {
		pubBytes, err := os.ReadFile(c.PublicKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read public key: %w", err)
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey(pubBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse public key %s: %w", c.PublicKeyPath, err)
		}
		if !bytes.Equal(pub.Marshal(), signer.PublicKey().Marshal()) {
			return nil, nil, fmt.Errorf("public key %s does not match private key %s", c.PublicKeyPath, keyPath)
		}
	}

	return goph.Auth{ssh.PublicKeys(signer)}, func() {}, nil
}
