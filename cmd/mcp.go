package cmd

import (
	"github.com/spf13/cobra"

	"outlookmcp/internal/tools"
)

// mcpCmd runs the MCP tool server on stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool server on stdio",
	Long: `Runs the Outlook assistant MCP server on stdin/stdout. MCP clients launch
this command; it acts for the identity in USER_ID.

Tools:
  about              server information
  authenticate       sign-in link for USER_ID (force=true to sign in again)
  check-auth-status  whether a valid token is stored for USER_ID

Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	c, err := newComponents(loadedConfig)
	if err != nil {
		return err
	}
	return newFacade(c).ServeStdio()
}

func newFacade(c *components) *tools.Facade {
	return tools.NewFacade(tools.Config{
		UserID:        c.cfg.Tools.UserID,
		TestMode:      c.cfg.Tools.TestMode,
		AuthServerURL: c.cfg.Server.EffectivePublicURL(),
		ServerName:    c.cfg.Tools.ServerName,
		Version:       GetVersion(),
	}, c.flow, c.cipher, c.store, c.probe)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
