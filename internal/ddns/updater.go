package ddns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/evanofslack/dns-relay/internal/config"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
	"github.com/evanofslack/dns-relay/internal/relay"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, op relay.Operation) (provider.Envelope, error)
}

type AddrSource interface {
	Current(ctx context.Context) (netip.Addr, error)
}

// Updater keeps one hostname pointed at this host's public address.
type Updater struct {
	dispatcher Dispatcher
	source     AddrSource
	metrics    *metrics.Metrics

	domain   string
	ttl      int
	proxied  bool
	interval time.Duration

	last netip.Addr
}

func NewUpdater(cfg config.DDNS, d Dispatcher, source AddrSource, metrics *metrics.Metrics) (*Updater, error) {
	if cfg.Domain == "" {
		return nil, errors.New("ddns domain required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("ddns interval must be positive, got %s", cfg.Interval)
	}
	return &Updater{
		dispatcher: d,
		source:     source,
		metrics:    metrics,
		domain:     cfg.Domain,
		ttl:        cfg.TTL,
		proxied:    cfg.Proxied,
		interval:   cfg.Interval,
	}, nil
}

// Run updates once immediately and then on every interval until ctx is done.
// Failed cycles are logged and retried on the next tick.
func (u *Updater) Run(ctx context.Context) error {
	slog.Info("Starting ddns updater", "domain", u.domain, "interval", u.interval)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		if err := u.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("DDNS update failed", "domain", u.domain, "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("Stopping ddns updater", "domain", u.domain)
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce points the record at the current address. The upstream is left
// alone when the address has not changed since the last successful cycle.
func (u *Updater) RunOnce(ctx context.Context) (err error) {
	defer func() { u.metrics.IncDDNSRun(err == nil) }()

	addr, err := u.source.Current(ctx)
	if err != nil {
		return err
	}
	if addr == u.last {
		slog.Debug("Public ip unchanged", "domain", u.domain, "ip", addr)
		return nil
	}

	op := relay.Operation{
		Action:     relay.ActionUpdate,
		RecordType: RecordType(addr),
		Domain:     u.domain,
		Content:    provider.Raw(addr.String()),
		TTL:        provider.Raw(u.ttl),
		Proxied:    provider.Raw(u.proxied),
	}

	env, err := u.dispatcher.Dispatch(ctx, op)
	if err != nil {
		return err
	}
	if !env.Success && lo.Contains(env.ErrorMessages(), relay.MsgRecordNotFound) {
		slog.Info("DNS record missing, adding", "domain", u.domain, "type", op.RecordType)
		op.Action = relay.ActionAdd
		if env, err = u.dispatcher.Dispatch(ctx, op); err != nil {
			return err
		}
	}
	if !env.Success {
		return fmt.Errorf("%s %s record for %s: %s", op.Action, op.RecordType, u.domain, strings.Join(env.ErrorMessages(), "; "))
	}

	slog.Info("Updated dns record", "domain", u.domain, "type", op.RecordType, "old", u.last, "new", addr, "action", op.Action)
	u.last = addr
	return nil
}
