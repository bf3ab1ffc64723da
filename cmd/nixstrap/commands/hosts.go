package commands

import (
	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/knownhosts"

	"github.com/spf13/cobra"
)

var HostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Known hosts commands",
	Long:  `Reconcile and check the host keys nixstrap trusts (NIXSTRAP_KNOWN_HOSTS).`,
}

var TrustHostCmd = &cobra.Command{
	Use:   "trust [username@hostname[:port]]",
	Short: "Record the host key a machine presents now",
	Long: `Connect to the machine, capture its host key and make it the only key recorded for the endpoint.
Older keys for the same endpoint (for example from the installer before a reinstall) are replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args)
		if err != nil {
			return err
		}

		session := newSession(target)
		defer session.Close()

		key, err := session.Connect(cmd.Context())
		if err != nil {
			return err
		}

		ep := target.Endpoint
		result, err := knownhosts.Reconcile(config.Config.KnownHostsPath, ep.Destination, ep.Port, key)
		if err != nil {
			return err
		}
		if err := knownhosts.VerifyText(config.Config.KnownHostsPath, ep.Destination, ep.Port, key); err != nil {
			return err
		}

		cmd.Printf("✅ %s: %s\n", knownhosts.Prefix(ep.Destination, ep.Port), result)
		cmd.Printf("🔑 %s\n", key)
		return nil
	},
}

var CheckHostCmd = &cobra.Command{
	Use:   "check [username@hostname[:port]]",
	Short: "Check the presented host key against the known hosts store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args)
		if err != nil {
			return err
		}

		session := newSession(target)
		defer session.Close()

		key, err := session.Connect(cmd.Context())
		if err != nil {
			return err
		}

		ep := target.Endpoint
		if err := knownhosts.VerifyText(config.Config.KnownHostsPath, ep.Destination, ep.Port, key); err != nil {
			return err
		}

		cmd.Printf("✅ %s is trusted\n", knownhosts.Prefix(ep.Destination, ep.Port))
		return nil
	},
}

func init() {
	HostsCmd.AddCommand(TrustHostCmd)
	HostsCmd.AddCommand(CheckHostCmd)
}
