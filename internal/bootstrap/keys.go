package bootstrap

import (
	"context"
	"os"

	"nixstrap/internal/agekey"
	"nixstrap/internal/logger"
	"nixstrap/internal/registry"
)

func (d *Driver) registerHostKey(ctx context.Context) (stepResult, error) {
	if err := d.tree.WriteHostPublicKey(d.host, d.hostKey); err != nil {
		return stepResult{}, err
	}

	recipient, err := agekey.FromSSHPublicKey(d.hostKey)
	if err != nil {
		return stepResult{}, err
	}

	outcome, err := d.registry.UpsertKey(d.tree.Abs(d.opts.SopsFile), d.opts.HostGroup, d.host, recipient)
	if err != nil {
		return stepResult{}, err
	}
	if outcome != registry.Unchanged {
		d.recipients = append(d.recipients, recipient)
	}

	return done("%s %s", d.host, outcome), nil
}

// UserKeyName is the registry anchor of a login user's age key on a host.
func UserKeyName(user, host string) string {
	return user + "_" + host
}

func (d *Driver) registerUserKey(ctx context.Context) (stepResult, error) {
	ok, err := d.confirm("Generate an age key for %s on %s?", d.user, d.host)
	if err != nil || !ok {
		return skipped("declined"), err
	}

	id, err := agekey.GenerateIdentity()
	if err != nil {
		return stepResult{}, err
	}

	name := UserKeyName(d.user, d.host)
	outcome, err := d.registry.UpsertKey(d.tree.Abs(d.opts.SopsFile), d.opts.UserGroup, name, id.Recipient)
	if err != nil {
		return stepResult{}, err
	}

	if err := d.session.WriteFile(remoteAgeKeysFile, id.KeysFile(d.now()), 0600); err != nil {
		return stepResult{}, err
	}
	logger.Info("Staged age identity for %s at ~/%s", d.target(), remoteAgeKeysFile)

	d.recipients = append(d.recipients, id.Recipient)
	return done("%s %s", name, outcome), nil
}

func (d *Driver) rekeySecrets(ctx context.Context) (stepResult, error) {
	if len(d.recipients) == 0 {
		return skipped("no new recipients"), nil
	}

	path := d.tree.Abs(d.opts.SecretsFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return skipped("%s does not exist", d.opts.SecretsFile), nil
	}

	for _, recipient := range d.recipients {
		if err := d.tree.AddSecretsRecipient(ctx, d.opts.SecretsFile, recipient); err != nil {
			return stepResult{}, err
		}
	}
	return done("%d recipient(s) added to %s", len(d.recipients), d.opts.SecretsFile), nil
}
