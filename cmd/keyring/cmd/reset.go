package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the vault",
	Long: `Erase every stored vault and cached session. Keyrings that are not backed
up elsewhere are lost for good.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm erasing the vault")
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if !resetYes && !PromptConfirm("Erase the vault and every keyring in it?") {
		return fmt.Errorf("reset cancelled")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Session.Reset(ctx); err != nil {
		return err
	}
	Warning("Vault erased")
	return nil
}
