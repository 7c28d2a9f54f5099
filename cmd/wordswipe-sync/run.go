package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/wordswipe-sync/internal/app"
	"github.com/alexjbarnes/wordswipe-sync/internal/auth"
	"github.com/alexjbarnes/wordswipe-sync/internal/config"
	"github.com/alexjbarnes/wordswipe-sync/internal/mcpserver"
	"github.com/alexjbarnes/wordswipe-sync/internal/server"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sign in and keep local progress in sync until interrupted",
	Long: `Sign in (resuming the cached session or creating an anonymous one),
merge the remote study data into the local store, then push local changes
every SYNC_INTERVAL and apply remote changes as they arrive.

With LOCAL_STORE=dir, edits made to the local directory by other processes
trigger an immediate push. With ENABLE_MCP=true the study and friend
operations are also served as MCP tools on MCP_LISTEN_ADDR.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	c, err := loadComponents(false)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("wordswipe-sync starting",
		slog.String("version", Version),
		slog.String("device", c.cfg.DeviceName),
		slog.String("local_store", c.cfg.LocalStore),
		slog.Bool("mcp", c.cfg.EnableMCP),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := c.app.Initialize(ctx); err != nil {
		return fmt.Errorf("starting sync: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.ctrl.Listen(gctx)
	})

	if c.files != nil {
		watcher := state.NewWatcher(c.files, c.logger, func(key string) {
			if key != state.KeyStudied && key != state.KeyStats {
				return
			}

			c.logger.Debug("local change detected", slog.String("key", key))
			c.ctrl.NotifyLocalChange()
		})

		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	if c.cfg.EnableMCP {
		g.Go(func() error {
			return runMCP(gctx, c.cfg, c.app, c.logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// runMCP serves the MCP tools until ctx is cancelled.
func runMCP(ctx context.Context, cfg *config.Config, a *app.App, logger *slog.Logger) error {
	entries, err := cfg.ParseMCPAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing MCP API keys: %w", err)
	}

	keys := make([]auth.APIKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, auth.APIKey{UserID: e.UserID, Hash: e.Hash})
	}

	mcpLogger := logger.With(slog.String("service", "mcp"))

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "wordswipe-sync-mcp", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, a)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	mux := server.NewMux(server.MuxConfig{
		Keys:       auth.NewKeyring(keys),
		MCPHandler: mcpHandler,
		Logger:     mcpLogger,
		Status:     func() string { return a.Status().String() },
	})

	srv := &http.Server{
		Addr:         cfg.MCPListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	mcpLogger.Info("starting MCP server",
		slog.String("listen", cfg.MCPListenAddr),
		slog.Int("keys", len(keys)),
	)

	go func() {
		<-ctx.Done()
		mcpLogger.Info("shutting down MCP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
