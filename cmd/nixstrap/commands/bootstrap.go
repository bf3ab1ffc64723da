package commands

import (
	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/bootstrap"
	"nixstrap/internal/registry"
	"nixstrap/internal/terminal"

	"github.com/spf13/cobra"
)

var (
	BootstrapSSHKeyPath    string
	BootstrapSSHPassphrase string
	BootstrapUseAgent      bool
	BootstrapConfigPath    string
	BootstrapHostPrefix    string
	BootstrapAssumeYes     bool
	BootstrapKeepWorkDir   bool
)

var BootstrapCmd = &cobra.Command{
	Use:   "bootstrap [username@hostname[:port]]",
	Short: "Install NixOS on a booted installer and register its keys",
	Long: `Bootstrap a machine running the NixOS installer: trust its host key, log in, prepare the
configuration tree, optionally generate hardware facts, pick the disk, deploy with nixos-anywhere,
reconnect after the reboot, and register the host's age key in the secrets registry.

If no username@hostname[:port] is provided, NIXSTRAP_SSH_USER, NIXSTRAP_SSH_DESTINATION and
NIXSTRAP_SSH_PORT are used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args)
		if err != nil {
			return err
		}

		journal, err := requireJournal()
		if err != nil {
			return err
		}

		session := newSession(target)
		defer session.Close()

		opts := bootstrap.Options{
			User:              target.User,
			Credentials:       buildCredentials(BootstrapSSHKeyPath, BootstrapUseAgent, BootstrapSSHPassphrase),
			KnownHostsPath:    config.Config.KnownHostsPath,
			ConfigPath:        BootstrapConfigPath,
			ConfigRepo:        config.Config.ConfigRepo,
			HostPrefix:        BootstrapHostPrefix,
			SopsFile:          config.Config.SopsFile,
			SecretsFile:       config.Config.SecretsFile,
			HostGroup:         config.Config.RegistryHostGroup,
			KeepWorkDir:       BootstrapKeepWorkDir,
			InterruptExitCode: config.Config.InterruptExitCode,
			Out:               cmd.OutOrStdout(),
		}

		runner := terminal.Local{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
		editor := registry.NewEditor(config.Config.Layouts())

		driver := bootstrap.New(session, newPrompter(cmd, BootstrapAssumeYes), runner, editor, journal, opts)

		if err := driver.Run(cmd.Context()); err != nil {
			return err
		}

		cmd.Printf("✅ Bootstrap run %s finished for %s\n", driver.RunID(), target.Endpoint)
		return nil
	},
}

func init() {
	BootstrapCmd.Flags().StringVar(&BootstrapSSHKeyPath, "ssh-key-path", "", "Path to the SSH public key to log in with (private key next to it, without .pub)")
	BootstrapCmd.Flags().StringVar(&BootstrapSSHPassphrase, "ssh-key-passphrase", "", "Passphrase of the SSH private key (asked for when needed if empty)")
	BootstrapCmd.Flags().BoolVar(&BootstrapUseAgent, "agent", false, "Authenticate with the running ssh-agent")
	BootstrapCmd.Flags().StringVar(&BootstrapConfigPath, "config-path", "", "Use an existing configuration tree instead of cloning NIXSTRAP_CONFIG_REPO")
	BootstrapCmd.Flags().StringVar(&BootstrapHostPrefix, "host-prefix", "", "Only offer configuration hosts starting with this prefix")
	BootstrapCmd.Flags().BoolVarP(&BootstrapAssumeYes, "yes", "y", false, "Answer yes to every question")
	BootstrapCmd.Flags().BoolVar(&BootstrapKeepWorkDir, "keep-workdir", false, "Keep the temporary work directory with the cloned tree")
}
