package cmd

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evanofslack/dns-relay/internal/ddns"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/relay"
)

var (
	ddnsOnce bool
	ddnsCmd  = &cobra.Command{
		Use:   "ddns",
		Short: "Keep a record pointed at this host's public address",
		Args:  cobra.NoArgs,
		RunE:  runDDNS,
	}
)

func init() {
	ddnsCmd.Flags().BoolVar(&ddnsOnce, "once", false, "run a single update and exit")
}

func runDDNS(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metrics := metrics.New(false)
	p, err := newProvider(cfg.Cloudflare, metrics)
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg.Audit, metrics)
	if err != nil {
		return err
	}
	defer journal.Close()

	source := ddns.NewIPSource(cfg.DDNS.IPURL, &http.Client{Timeout: cfg.Cloudflare.Timeout})
	updater, err := ddns.NewUpdater(cfg.DDNS, relay.NewDispatcher(p, journal), source, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ddnsOnce {
		return updater.RunOnce(ctx)
	}
	return updater.Run(ctx)
}
