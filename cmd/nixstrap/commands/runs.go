package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"nixstrap/internal/runs"

	"github.com/spf13/cobra"
)

var RunsLimit int

var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Bootstrap run journal commands",
}

var ListRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent bootstrap runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		journal, err := requireJournal()
		if err != nil {
			return err
		}

		list, err := journal.List(RunsLimit)
		if err != nil {
			return err
		}

		if len(list) == 0 {
			cmd.Println("No runs recorded")
			return nil
		}

		for _, run := range list {
			cmd.Println(run.String())
		}
		return nil
	},
}

var ShowRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the steps of a bootstrap run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := requireJournal()
		if err != nil {
			return err
		}

		run, err := journal.Get(args[0])
		if err != nil {
			return err
		}
		steps, err := journal.Steps(run.ID)
		if err != nil {
			return err
		}

		cmd.Printf("Run:      %s\n", run.ID)
		cmd.Printf("Endpoint: %s\n", run.Endpoint)
		cmd.Printf("Host:     %s\n", run.Host)
		cmd.Printf("Status:   %s (%s)\n", run.Status, run.Duration(time.Now()).Round(time.Second))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tSTEP\tSTATUS\tDETAIL")
		for _, s := range steps {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Seq, s.Name, s.Status, s.Detail)
		}
		return w.Flush()
	},
}

func init() {
	RunsCmd.AddCommand(ListRunsCmd)
	RunsCmd.AddCommand(ShowRunCmd)

	ListRunsCmd.Flags().IntVarP(&RunsLimit, "limit", "n", runs.DefaultListLimit, "Number of runs to show")
}
