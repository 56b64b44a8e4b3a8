// Package cli implements the powermem-mcp command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/observe"
)

var (
	configPath string
	envPath    string
	logLevel   string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "powermem-mcp",
	Short: "Semantic memory for coding agents",
	Long: `powermem-mcp stores memories in role and project collections and
serves them to agents over MCP with two-stage retrieval: search returns
previews, get returns full documents.

Configuration comes from --config (YAML or JSON), --env, or a .env file
found in the working directory or one of its parents.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or JSON config file")
	RootCmd.PersistentFlags().StringVar(&envPath, "env", "", ".env file to load instead of searching for one")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
}

func loadConfig() (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	switch {
	case configPath != "":
		cfg, err = core.LoadConfigFromFile(configPath)
	case envPath != "":
		cfg, err = core.LoadConfigFromEnvFile(envPath)
	default:
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// openClient loads the configuration and connects a memory client. Logs go
// to stderr so stdout stays free for MCP traffic and command output.
func openClient() (*core.Client, *observe.Observer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	obs := observe.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	client, err := core.NewClient(cfg, core.WithObserver(obs))
	if err != nil {
		return nil, nil, err
	}
	return client, obs, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
