package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  "Show the vault state, storage backend and, for a cached session, the number of keyrings.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Session.Restore(ctx); err != nil {
		return err
	}
	state, err := a.Session.State(ctx)
	if err != nil {
		return err
	}

	location := a.Config.Storage.Backend
	if a.Config.Storage.Backend == config.BackendBolt {
		location = a.Config.Storage.BoltPath
	}
	keyrings := len(a.Session.GetKeyrings())

	if jsonOutput {
		return printJSON(map[string]any{
			"state":         state,
			"storage":       a.Config.Storage.Backend,
			"location":      location,
			"session_cache": a.Config.Session.Cache,
			"keyrings":      keyrings,
		})
	}

	PrintKeyValue("Vault", location)
	PrintKeyValue("State", string(state))
	PrintKeyValue("Session cache", a.Config.Session.Cache)
	if a.Session.IsUnlocked() {
		PrintKeyValue("Keyrings", fmt.Sprintf("%d", keyrings))
	} else if a.Config.Session.Cache != config.CacheRedis {
		fmt.Fprintln(stdout, Dim("Sessions only persist between commands with session.cache=redis"))
	}
	return nil
}
