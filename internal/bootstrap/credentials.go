package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nixstrap/internal/logger"
	"nixstrap/internal/ssh"
)

const (
	DefaultUser          = "nixos"
	maxCredentialPrompts = 3
)

var credentialChoices = []string{"ssh-agent", "password", "public key file"}

func (d *Driver) authenticate(ctx context.Context) (stepResult, error) {
	d.user = d.opts.User
	if d.user == "" {
		user, err := d.prompt.Input("SSH user", DefaultUser)
		if err != nil {
			return stepResult{}, err
		}
		d.user = user
	}

	if len(d.opts.Credentials) > 0 {
		for _, cred := range d.opts.Credentials {
			used, err := d.tryCredential(ctx, cred)
			if err == nil {
				d.cred = used
				return done("%s as %s", used.Kind(), d.user), nil
			}
			if !errors.Is(err, ssh.ErrAuth) {
				return stepResult{}, err
			}
			logger.Warn("%s credential rejected for %s: %v", cred.Kind(), d.target(), err)
		}
		return stepResult{}, fmt.Errorf("%w: %s", ErrCredentialsRefused, d.target())
	}

	for attempt := 0; attempt < maxCredentialPrompts; attempt++ {
		cred, err := d.askCredential()
		if err != nil {
			return stepResult{}, err
		}
		used, err := d.tryCredential(ctx, cred)
		if err == nil {
			d.cred = used
			return done("%s as %s", used.Kind(), d.user), nil
		}
		if !errors.Is(err, ssh.ErrAuth) {
			return stepResult{}, err
		}
		logger.Warn("%s credential rejected for %s: %v", cred.Kind(), d.target(), err)
	}
	return stepResult{}, fmt.Errorf("%w: %s", ErrCredentialsRefused, d.target())
}

// tryCredential authenticates with cred, asking once for a passphrase when
// the private key turns out to be encrypted.
func (d *Driver) tryCredential(ctx context.Context, cred ssh.Credential) (ssh.Credential, error) {
	err := d.session.Authenticate(ctx, d.user, cred)
	if err == nil || !errors.Is(err, ssh.ErrPassphraseRequired) {
		return cred, err
	}

	pk, ok := cred.(ssh.PublicKeyCredential)
	if !ok {
		return cred, err
	}
	passphrase, perr := d.prompt.Password(fmt.Sprintf("Passphrase for %s", pk.PublicKeyPath))
	if perr != nil {
		return cred, perr
	}
	pk.Passphrase = passphrase

	return pk, d.session.Authenticate(ctx, d.user, pk)
}

func (d *Driver) askCredential() (ssh.Credential, error) {
	idx, err := d.prompt.Select(fmt.Sprintf("How should %s authenticate?", d.target()), credentialChoices)
	if err != nil {
		return nil, err
	}

	switch idx {
	case 0:
		return ssh.AgentCredential{}, nil
	case 1:
		password, err := d.prompt.Password(fmt.Sprintf("Password for %s", d.target()))
		if err != nil {
			return nil, err
		}
		return ssh.PasswordCredential{Password: password}, nil
	default:
		path, err := d.prompt.Input("Public key path", "~/.ssh/id_ed25519.pub")
		if err != nil {
			return nil, err
		}
		return ssh.PublicKeyCredential{PublicKeyPath: ExpandHome(path)}, nil
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
