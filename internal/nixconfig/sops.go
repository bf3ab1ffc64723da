package nixconfig

import (
	"context"
	"fmt"
	"os"

	"nixstrap/internal/logger"
	"nixstrap/internal/terminal"

	"github.com/moby/sys/atomicwriter"
)

// AddSecretsRecipient re-encrypts secretsFile so agePublicKey can decrypt it.
// sops prints the rotated document; it replaces the file in one step.
func (t *Tree) AddSecretsRecipient(ctx context.Context, secretsFile string, agePublicKey string) error {
	path := t.Abs(secretsFile)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	logger.Info("Adding age recipient %s to %s", agePublicKey, secretsFile)

	cmd := terminal.NewCommand("sops", "-r", "--add-age", agePublicKey, path).WithDir(t.Path)
	out, err := t.runner.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("re-keying %s: %w", secretsFile, err)
	}

	return atomicwriter.WriteFile(path, []byte(out+"\n"), info.Mode().Perm())
}
