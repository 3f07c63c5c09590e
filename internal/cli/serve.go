package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutrigen/nutrigen/internal/api"
	"github.com/nutrigen/nutrigen/internal/app/orchestrator"
	"github.com/nutrigen/nutrigen/internal/daemon"
	"github.com/nutrigen/nutrigen/internal/infra/cache"
	"github.com/nutrigen/nutrigen/internal/infra/functions"
	"github.com/nutrigen/nutrigen/internal/infra/observability"
	"github.com/nutrigen/nutrigen/internal/infra/sqlite"
	"github.com/nutrigen/nutrigen/internal/infra/surface"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Bind address (overrides config)")
	serveCmd.Flags().Int("port", 0, "Port (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the nutrigen server",
	Long: `Run the nutrigen HTTP server. Configuration is read from
~/.nutrigen/config.toml with NUTRIGEN_* environment overrides.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.API.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}

	home := daemon.Home()
	if err := os.MkdirAll(home, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := sqlite.Open(home)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	log.Printf("[serve] database ready at %s", home)

	invoker := functions.New(cfg.Functions.BaseURL, cfg.Functions.Token)
	queryCache := cache.New(cfg.Cache.CacheTTL())
	tracer := observability.NewTracer(observability.DefaultTracerConfig())

	orchCfg := orchestrator.Config{
		RefundOnFailure: cfg.Credits.RefundOnFailure,
		Progress:        cfg.Progress.BuildProgress(),
	}
	toasts := surface.NewRecordingNotifier(20)
	notifier := surface.MultiNotifier{surface.ConsoleNotifier{}, toasts}
	svc := orchestrator.New(orchCfg, db, db, invoker, queryCache,
		notifier, surface.ConsoleAnalytics{}, tracer)

	hub := api.NewProgressHub()
	svc.SetProgressSink(hub.Broadcast)

	server := api.NewServer(svc, db, db)
	server.SetProgressHub(hub)
	server.SetToasts(toasts)
	server.SetRateLimit(cfg.API.RateLimitRPM)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[serve] received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
