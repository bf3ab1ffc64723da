package commands

import (
	"fmt"
	"os"

	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/bootstrap"
	"nixstrap/internal/prompt"
	"nixstrap/internal/ssh"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// parseTarget reads user@host[:port] from the first positional argument,
// falling back to the configured endpoint.
func parseTarget(args []string) (ssh.Target, error) {
	if len(args) > 0 {
		target, err := ssh.ParseTarget(args[0])
		if err != nil {
			return ssh.Target{}, fmt.Errorf("failed to parse SSH target '%s': %w", args[0], err)
		}
		return target, nil
	}

	return ssh.Target{
		User: config.Config.SSHUser,
		Endpoint: ssh.Endpoint{
			Destination: config.Config.SSHDestination,
			Port:        config.Config.SSHPort,
		},
	}, nil
}

func newSession(target ssh.Target) *ssh.Session {
	return ssh.NewSession(target.Endpoint, ssh.WithTimeout(config.Config.SSHTimeout))
}

// newPrompter prompts on the terminal, or answers yes to everything when
// assumeYes is set or stdin is not a terminal.
func newPrompter(cmd *cobra.Command, assumeYes bool) prompt.Prompter {
	if assumeYes {
		return &prompt.Scripted{AssumeYes: true}
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return prompt.NewReaderTerminal(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	return prompt.NewTerminal(cmd.ErrOrStderr())
}

// buildCredentials turns the auth flags into the ordered credential list.
// An empty list lets the bootstrap ask for one.
func buildCredentials(keyPath string, useAgent bool, passphrase string) []ssh.Credential {
	var creds []ssh.Credential

	if useAgent {
		creds = append(creds, ssh.AgentCredential{})
	}
	if keyPath != "" {
		creds = append(creds, ssh.PublicKeyCredential{
			PublicKeyPath: bootstrap.ExpandHome(keyPath),
			Passphrase:    passphrase,
		})
	}

	return creds
}
