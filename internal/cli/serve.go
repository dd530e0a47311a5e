package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/httpapi"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/tools"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the multi-tenant HTTP/SSE gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if err := cfg.ValidateHTTP(); err != nil {
			return err
		}
		defer memguard.Purge()

		store := session.NewMemoryStore()
		issuer := auth.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL.Std())
		hc := jira.NewHTTPClient(cfg.Jira.Timeout.Std(), cfg.Jira.ReadRetries)
		d := tools.NewDispatcher(registry.New(), hc,
			tools.WithLogger(logger),
			tools.WithSecrets(cfg.Auth.JWTSecret),
		)
		api := httpapi.New(store, auth.NewAuthenticator(issuer, store), jira.NewValidator(cfg.Jira.Timeout.Std()), d,
			httpapi.WithLogger(logger),
			httpapi.WithHeaders(cfg.Headers),
			httpapi.WithHeartbeat(cfg.SSE.HeartbeatInterval.Std()),
			httpapi.WithSecrets(cfg.Auth.JWTSecret),
		)

		g, ctx := errgroup.WithContext(cmd.Context())

		// No WriteTimeout: SSE responses stay open. Request contexts derive
		// from ctx so open streams end when shutdown starts.
		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		g.Go(func() error {
			logger.Info("gateway listening",
				"addr", cfg.Server.Addr,
				"version", Version,
				"tools", d.Catalog().Len(),
				"session_timeout", cfg.Sessions.Timeout.Std(),
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})

		sweeper := session.NewSweeper(store, cfg.Sessions.SweepInterval.Std(), cfg.Sessions.Timeout.Std(), logger)
		g.Go(func() error { return sweeper.Run(ctx) })

		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down", "active_sessions", store.Len(), "active_streams", api.ActiveStreams())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
