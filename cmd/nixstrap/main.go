package main

import (
	"fmt"
	"os"

	"nixstrap/cmd/nixstrap/commands"
	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/database"
	"nixstrap/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nixstrap",
	Short: "Bootstrap NixOS machines from a booted installer",
	Long: `nixstrap takes a machine booted into the NixOS installer to an installed, registered host.

It connects over SSH, records the host key it is shown, logs in, prepares the NixOS configuration
tree, deploys it with nixos-anywhere, reconnects after the reboot (updating the recorded host key),
and registers the host's age key in the .sops.yaml key registry so the host can decrypt its secrets.

Quick start:

nixstrap bootstrap nixos@192.168.1.50

Every run is journaled; see 'nixstrap runs list'.
`,
	Version:       fmt.Sprintf("%s (commit: %s, date: %s, arch: %s, os: %s); db path: %s; profile: %s", version.Version, version.Commit, version.Date, version.Arch, version.OS, config.DatabasePath, config.Profile),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	db, err := database.InitDB(config.Config.DatabasePath)

	if err != nil {
		rootCmd.PrintErrf("Failed to initialize database at %s: %v\n", config.Config.DatabasePath, err)
		db = nil
	}

	commands.RegisterCommands(rootCmd, db)

	exitCode := 0
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("❌ Error: %v\n", err)
		exitCode = 1
	}

	if db != nil {
		if err := database.CloseDB(db); err != nil {
			rootCmd.PrintErrf("Failed to close database: %v\n", err)
		}
	}

	os.Exit(exitCode)
}
