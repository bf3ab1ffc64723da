package agekey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"filippo.io/age"
	"golang.org/x/crypto/ssh"
)

// Identity is a native age X25519 key pair.
type Identity struct {
	Recipient string // age1...
	Secret    string // AGE-SECRET-KEY-1...
}

func GenerateIdentity() (*Identity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	return &Identity{
		Recipient: id.Recipient().String(),
		Secret:    id.String(),
	}, nil
}

// KeysFile renders the identity in the age keys.txt format read by sops.
func (id *Identity) KeysFile(now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# created: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "# public key: %s\n", id.Recipient)
	b.WriteString(id.Secret)
	b.WriteByte('\n')
	return []byte(b.String())
}

// HostKey is an OpenSSH ed25519 host key pair, as ssh-keygen -t ed25519 writes it.
type HostKey struct {
	PrivateKey []byte // PEM, mode 0600 on disk
	PublicKey  string // authorized-keys form with comment
}

// GenerateHostKey creates an unencrypted ed25519 host key pair.
func GenerateHostKey(comment string) (*HostKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating host key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("encoding host key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("encoding host public key: %w", err)
	}

	text := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		text += " " + comment
	}
	return &HostKey{
		PrivateKey: pem.EncodeToMemory(block),
		PublicKey:  text,
	}, nil
}
