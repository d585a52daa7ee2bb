package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newPasswordEnv supplies the new password non-interactively.
const newPasswordEnv = "KEYRING_NEW_PASSWORD"

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the vault password",
	Long: `Re-encrypt the vault under a new password.

For scripts the current and new passwords can be provided via KEYRING_PASSWORD
and KEYRING_NEW_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}

func runPasswd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	oldPassword, err := readPassword("Current password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	newPassword := os.Getenv(newPasswordEnv)
	if newPassword == "" {
		newPassword, err = promptPasswordConfirm("New password: ")
		if err != nil {
			return err
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := unlock(ctx, a, oldPassword); err != nil {
		return err
	}
	if err := a.Session.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return err
	}

	Success("Password changed")
	return nil
}
