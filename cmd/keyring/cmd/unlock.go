package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the vault, creating it on first use",
	Long: `Unlock the vault by entering your password. The first unlock creates an
empty vault protected by the password you choose.

The password can also be provided via the KEYRING_PASSWORD environment variable.`,
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.Session.State(ctx)
	if err != nil {
		return err
	}

	password := os.Getenv(passwordEnv)
	if password == "" {
		if state == session.StateUninitialized {
			password, err = promptPasswordConfirm("Choose a password: ")
		} else {
			password, err = promptPassword("Enter password: ")
		}
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	if err := unlock(ctx, a, password); err != nil {
		return err
	}

	if state == session.StateUninitialized {
		Success("Vault created")
	} else {
		Success("Vault unlocked")
	}
	if a.Config.Session.Cache == config.CacheRedis {
		Info("Session cached until it idles out or 'keyring lock' is run")
	}
	return nil
}
