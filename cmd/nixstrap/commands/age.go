package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"nixstrap/internal/agekey"

	"github.com/spf13/cobra"
)

var AgeOutput string

var AgeCmd = &cobra.Command{
	Use:   "age",
	Short: "age key commands",
}

var ConvertAgeCmd = &cobra.Command{
	Use:   `convert ["ssh-ed25519 AAAA..." | -]`,
	Short: "Convert an ssh-ed25519 public key to its age recipient",
	Long:  `Convert an ssh-ed25519 public key (argument, or stdin with "-" or no argument) to the age X25519 recipient of the same key pair.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 0 || args[0] == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			key = string(data)
		} else {
			key = args[0]
			if data, err := os.ReadFile(key); err == nil {
				key = string(data)
			}
		}

		recipient, err := agekey.FromSSHPublicKey(strings.TrimSpace(key))
		if err != nil {
			return err
		}

		cmd.Println(recipient)
		return nil
	},
}

var GenerateAgeCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an age identity in keys.txt format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := agekey.GenerateIdentity()
		if err != nil {
			return err
		}

		contents := id.KeysFile(time.Now())

		if AgeOutput == "" {
			cmd.Print(string(contents))
			return nil
		}

		f, err := os.OpenFile(AgeOutput, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating %s: %w", AgeOutput, err)
		}
		defer f.Close()

		if _, err := f.Write(contents); err != nil {
			return err
		}

		cmd.PrintErrf("Public key: %s\n", id.Recipient)
		return nil
	},
}

func init() {
	AgeCmd.AddCommand(ConvertAgeCmd)
	AgeCmd.AddCommand(GenerateAgeCmd)

	GenerateAgeCmd.Flags().StringVarP(&AgeOutput, "output", "o", "", "Write the identity to a new file (mode 0600) instead of stdout")
}
