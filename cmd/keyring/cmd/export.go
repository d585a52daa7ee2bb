package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sendnodes-io/sendwallet-sub000/internal/validation"
)

var exportYes bool

var exportCmd = &cobra.Command{
	Use:   "export <address>",
	Short: "Print the private key of an address",
	Long: `Print the hex private key behind an address.

Anyone holding the key controls the account. You are asked to confirm unless
--yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolVarP(&exportYes, "yes", "y", false, "skip the confirmation prompt")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validation.Address(args[0]); err != nil {
		return err
	}

	if !exportYes && !PromptConfirm("Reveal the private key of "+args[0]+"?") {
		return fmt.Errorf("export cancelled")
	}

	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := a.Session.ExportPrivateKey(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"address": args[0], "privateKey": key})
	}
	fmt.Fprintln(stdout, key)
	return nil
}
