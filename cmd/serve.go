package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/relay"
	"github.com/evanofslack/dns-relay/internal/server"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay and operations listeners",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metrics := metrics.New(true)

	p, err := newProvider(cfg.Cloudflare, metrics)
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg.Audit, metrics)
	if err != nil {
		return err
	}
	defer journal.Close()

	dispatcher := relay.NewDispatcher(p, journal)

	relaySrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.NewRelayRouter(server.NewHandler(dispatcher, metrics)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	opsSrv := &http.Server{
		Addr:              cfg.MetricsListen,
		Handler:           server.NewOpsRouter(metrics, journal),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	start := func(name string, srv *http.Server) {
		go func() {
			slog.Info("Starting server", "name", name, "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}
	start("relay", relaySrv)
	start("ops", opsSrv)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err = <-errCh:
		slog.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for name, srv := range map[string]*http.Server{"relay": relaySrv, "ops": opsSrv} {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			slog.Error("Server shutdown error", "name", name, "error", serr)
		}
	}

	slog.Info("Service shutdown complete")
	return err
}
