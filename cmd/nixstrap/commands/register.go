package commands

import (
	"errors"

	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/logger"
	"nixstrap/internal/runs"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var ErrNoDatabase = errors.New("run journal database is not available")

var (
	runsRepository *runs.Repository

	Verbose bool
)

func RegisterCommands(rootCmd *cobra.Command, db *gorm.DB) {
	if db != nil {
		runsRepository = runs.NewRepository(db)
	}

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if Verbose {
			logger.SetLevel(logger.DEBUG)
			return
		}
		if level, err := logger.ParseLevel(config.Config.LogLevel); err == nil {
			logger.SetLevel(level)
		} else {
			logger.Warn("Ignoring NIXSTRAP_LOG_LEVEL: %v", err)
		}
	}

	rootCmd.AddCommand(BootstrapCmd)
	rootCmd.AddCommand(HostsCmd)
	rootCmd.AddCommand(SopsCmd)
	rootCmd.AddCommand(AgeCmd)
	rootCmd.AddCommand(RunsCmd)
}

func requireJournal() (*runs.Repository, error) {
	if runsRepository == nil {
		return nil, ErrNoDatabase
	}
	return runsRepository, nil
}
