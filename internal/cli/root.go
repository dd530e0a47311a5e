// Package cli wires configuration, logging and the gateway components into
// the jira-mcp command tree.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/config"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jira-mcp",
	Short: "Multi-tenant Jira gateway for MCP clients",
	Long: `jira-mcp exposes a fixed set of Jira tools to Model Context Protocol clients.

Run "jira-mcp serve" for the multi-tenant HTTP/SSE gateway, where each caller
exchanges Jira credentials for a bearer token, or "jira-mcp stdio" to serve a
single set of credentials over standard input and output.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (environment variables override it)")
}

// loadConfig reads configuration and builds a logger that writes to w.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, w)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
