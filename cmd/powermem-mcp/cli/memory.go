package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	"github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/document"
)

var (
	memoryLevel string
	memoryRole  string
	searchLimit int
	storeFile   string
	storeType   string
	consolidate bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories and print previews",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		res, err := client.Search(cmd.Context(), args[0], memoryLevel,
			core.WithRole(memoryRole),
			core.WithLimit(searchLimit),
		)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [doc-id...]",
	Short: "Print the full content of one or more memories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if len(args) == 1 {
			memory, err := client.Get(cmd.Context(), args[0], memoryLevel, core.WithRoleForGet(memoryRole))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), memory)
		}

		res, err := client.BatchGet(cmd.Context(), args, memoryLevel, core.WithRoleForGet(memoryRole))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var storeCmd = &cobra.Command{
	Use:   "store [document]",
	Short: "Store a memory from an argument or a file",
	Long: `Store a memory document given as the argument or read from --file.

Without --role, global memories go to the first role suggested by the
document's keywords. Tags are taken from the document's **Tags:** line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args)
		if err != nil {
			return err
		}

		client, _, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		metadata := core.Metadata{
			MemoryType: core.MemoryType(storeType),
			Role:       storeRole(doc),
			Tags:       document.ParseTags(doc),
			Title:      document.ExtractPreview(doc).Title,
		}

		if consolidate {
			res, err := client.Consolidate(cmd.Context(), doc, metadata, memoryLevel)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}

		res, err := client.Store(cmd.Context(), doc, metadata, memoryLevel)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := openClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		res, err := client.Delete(cmd.Context(), args[0], memoryLevel, core.WithRoleForDelete(memoryRole))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func readDocument(args []string) (string, error) {
	switch {
	case storeFile != "" && len(args) > 0:
		return "", fmt.Errorf("pass the document either as an argument or with --file, not both")
	case storeFile != "":
		data, err := os.ReadFile(storeFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("no document given")
	}
}

// storeRole returns the --role flag, or for global memories the first role
// suggested by the document.
func storeRole(doc string) collection.Role {
	if role, ok := collection.ParseRole(memoryRole); ok {
		return role
	}
	if memoryLevel != collection.LevelGlobal {
		return ""
	}
	return collection.DetectRoles(doc)[0]
}

func init() {
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(getCmd)
	RootCmd.AddCommand(storeCmd)
	RootCmd.AddCommand(deleteCmd)

	for _, cmd := range []*cobra.Command{searchCmd, getCmd, storeCmd, deleteCmd} {
		cmd.Flags().StringVarP(&memoryLevel, "level", "l", collection.LevelGlobal, `"global" or a project name`)
		cmd.Flags().StringVarP(&memoryRole, "role", "r", "", "Role collection for global memories ("+roleList()+")")
	}
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", core.DefaultSearchLimit, "Maximum number of previews")
	storeCmd.Flags().StringVarP(&storeFile, "file", "f", "", "Read the document from a file")
	storeCmd.Flags().StringVarP(&storeType, "type", "t", "", "Memory type: episodic, procedural or semantic")
	storeCmd.Flags().BoolVar(&consolidate, "consolidate", false, "Merge into similar memories instead of always creating one")
}

func roleList() string {
	roles := collection.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
