package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/bandtree/internal/api"
	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
	"github.com/gyaneshwarpardhi/bandtree/internal/config"
	"github.com/gyaneshwarpardhi/bandtree/internal/editor"
)

const shutdownTimeout = 15 * time.Second

type serveOptions struct {
	addr       string
	configPath string
	logLevel   string
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tree editing HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(opts.logLevel)
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to bandtree YAML config (built-in defaults when empty)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(opts.configPath)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	// ── Editor ────────────────────────────────────────────────────────────────
	edCtx, edCancel := context.WithCancel(context.Background())
	defer edCancel()
	cat := catalog.New(cfg.Bands)
	ed := editor.New(edCtx, cat, cfg.Editor)
	slog.Info("band catalog loaded", "bands", cat.Len(), "config", loader.Path())

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		c := catalog.New(newCfg.Bands)
		ed.SwapCatalog(c)
		slog.Info("band catalog hot-reloaded", "bands", c.Len(), "version", newCfg.Version)
	})
	stopWatch, err := loader.Watch()
	switch {
	case errors.Is(err, config.ErrNoFile):
		slog.Debug("no config file, hot-reload disabled")
	case err != nil:
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	default:
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.New(ed, loader),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutMs) * time.Millisecond,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		ed.Shutdown()
		edCancel()
		return err
	})

	err = g.Wait()
	slog.Info("goodbye")
	return err
}
