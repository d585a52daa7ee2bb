package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	keyringmcp "github.com/sendnodes-io/sendwallet-sub000/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start keyring as an MCP server (stdio)",
	Long: `Start keyring as a Model Context Protocol server for AI agent integration.
Communicates over stdin/stdout using JSON-RPC. The vault is unlocked on start
and locks again when it idles out.

Access is governed by mcp-policy.yaml in the data directory (mcp.policy_path):
  access_mode: read-only | read-write | full
  accounts_allow: ["0x*"]
  accounts_deny: []
  allow_signing: true
  max_signatures_per_session: 50

Configure in .claude/settings.local.json:
  {
    "mcpServers": {
      "keyring": {
        "command": "keyring",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	policy, err := keyringmcp.LoadPolicy(a.Config.MCP.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to load MCP policy: %w", err)
	}
	if policy == nil {
		policy = keyringmcp.DefaultPolicy()
	}

	go a.Session.Run(ctx, a.Config.Session.AutolockInterval)

	srv := keyringmcp.NewKeyringMCPServer(a.Session, a.Signer, policy)
	return srv.Run(ctx)
}
