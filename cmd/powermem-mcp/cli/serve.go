package cli

import (
	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, obs, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		return mcpserver.New(client, obs).ServeStdio()
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the role collections and report every collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		// NewClient already created the role collections
		list, err := client.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var collectionsPattern string

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections with their memory counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		list, err := client.ListCollections(cmd.Context(), core.WithPattern(collectionsPattern))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(collectionsCmd)
	collectionsCmd.Flags().StringVarP(&collectionsPattern, "pattern", "p", "", `Glob filter such as "proj-*"`)
}
