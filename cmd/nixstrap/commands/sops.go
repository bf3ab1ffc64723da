package commands

import (
	"fmt"

	"nixstrap/cmd/nixstrap/config"
	"nixstrap/internal/registry"

	"github.com/spf13/cobra"
)

var (
	SopsFile  string
	SopsGroup string
	SopsName  string
	SopsValue string
)

var SopsCmd = &cobra.Command{
	Use:   "sops",
	Short: "Secrets registry commands",
	Long:  `Edit the anchor/alias key registry in a .sops.yaml without reformatting it.`,
}

var UpsertSopsCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Insert or update a key in the registry",
	Long: `Insert or update the anchor "- &NAME VALUE" in the definition block of GROUP and, for a new
key, add the alias "- *NAME" to the reference block. Every other line is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		editor := registry.NewEditor(config.Config.Layouts())

		outcome, err := editor.UpsertKey(SopsFile, SopsGroup, SopsName, SopsValue)
		if err != nil {
			return err
		}

		cmd.Printf("✅ %s: %s %s\n", SopsFile, SopsName, outcome)
		return nil
	},
}

var LookupSopsCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print the value of a key in the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		value, ok, err := registry.Lookup(SopsFile, SopsName)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %s not found in %s", SopsName, SopsFile)
		}

		cmd.Println(value)
		return nil
	},
}

func init() {
	SopsCmd.AddCommand(UpsertSopsCmd)
	SopsCmd.AddCommand(LookupSopsCmd)

	SopsCmd.PersistentFlags().StringVar(&SopsFile, "file", config.Config.SopsFile, "Registry file")
	SopsCmd.PersistentFlags().StringVar(&SopsName, "name", "", "Anchor name")

	UpsertSopsCmd.Flags().StringVar(&SopsGroup, "group", "users", "Key group (users or hosts)")
	UpsertSopsCmd.Flags().StringVar(&SopsValue, "value", "", "Key value, usually an age recipient")

	UpsertSopsCmd.MarkFlagRequired("value")
	SopsCmd.MarkPersistentFlagRequired("name")
}
