package cli

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/server"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/tools"
	"github.com/golovatskygroup/jira-mcp-gateway/pkg/mcp"
)

var stdioMaxInFlight int

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve one tenant's Jira tools over stdin/stdout",
	Long: `Serve MCP over standard input and output for the credentials in
JIRA_URL, JIRA_EMAIL and JIRA_API_TOKEN (or the stdio section of the config
file). The credentials are probed once at startup. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; everything else goes to stderr.
		cfg, logger, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		if err := cfg.ValidateStdio(); err != nil {
			return err
		}
		defer memguard.Purge()

		ctx := cmd.Context()
		creds := jira.Credentials{
			BaseURL:  cfg.Stdio.JiraURL,
			Email:    cfg.Stdio.Email,
			APIToken: cfg.Stdio.APIToken,
		}
		if err := jira.NewValidator(cfg.Jira.Timeout.Std()).Validate(ctx, creds); err != nil {
			return fmt.Errorf("jira credential check failed: %s",
				apierr.Redact(err.Error(), creds.APIToken, apierr.BasicAuthSecret(creds.Email, creds.APIToken)))
		}

		store := session.NewMemoryStore()
		id, err := store.Create(ctx, cfg.Stdio.UserID, creds.BaseURL, creds.Email, creds.APIToken)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}

		d := tools.NewDispatcher(registry.New(), jira.NewHTTPClient(cfg.Jira.Timeout.Std(), cfg.Jira.ReadRetries),
			tools.WithLogger(logger),
		)
		srv := server.New(mcp.NewTransport(os.Stdin, os.Stdout), d, store, id,
			server.WithLogger(logger),
			server.WithVersion(Version),
			server.WithMaxInFlight(stdioMaxInFlight),
		)

		logger.Info("serving stdio", "user_id", cfg.Stdio.UserID, "jira_url", creds.BaseURL, "version", Version)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd)
	stdioCmd.Flags().IntVar(&stdioMaxInFlight, "max-in-flight", 8, "maximum concurrent requests")
}
