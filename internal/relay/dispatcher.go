package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evanofslack/dns-relay/internal/audit"
	"github.com/evanofslack/dns-relay/internal/provider"
)

// Dispatcher runs one operation against the upstream: resolve the zone,
// resolve the record for update and delete, then make the single mutating
// call. Nothing is cached between calls.
type Dispatcher struct {
	provider provider.Provider
	journal  audit.Journal
}

func NewDispatcher(p provider.Provider, journal audit.Journal) *Dispatcher {
	if journal == nil {
		journal = audit.Nop()
	}
	return &Dispatcher{provider: p, journal: journal}
}

// Dispatch returns the envelope to relay. Validation failures come back as
// ErrMissingFields or ErrInvalidAction before any upstream call; any other
// error means an upstream call could not complete.
func (d *Dispatcher) Dispatch(ctx context.Context, op Operation) (provider.Envelope, error) {
	if err := op.Validate(); err != nil {
		return provider.Envelope{}, err
	}

	zone := BaseDomain(op.Domain)
	entry := audit.NewEntry(ctx, op.Action, op.RecordType, op.Domain, zone)

	env, err := d.run(ctx, op, zone)
	if err != nil {
		entry.Errors = []string{MsgUpstreamFailed}
	} else {
		entry.Success = env.Success
		entry.Errors = env.ErrorMessages()
	}
	if jerr := d.journal.Record(ctx, entry); jerr != nil {
		slog.Warn("fail record audit entry", "domain", op.Domain, "action", op.Action, "error", jerr)
	}
	return env, err
}

func (d *Dispatcher) run(ctx context.Context, op Operation, zone string) (provider.Envelope, error) {
	zoneID, err := d.provider.ZoneID(ctx, zone)
	if err != nil {
		return provider.Envelope{}, fmt.Errorf("resolve zone %s: %w", zone, err)
	}
	if zoneID == "" {
		slog.Info("Zone not found", "zone", zone, "domain", op.Domain)
		return provider.Failure(MsgZoneNotFound), nil
	}

	switch op.Action {
	case ActionAdd:
		return d.provider.CreateRecord(ctx, zoneID, op.Record())
	case ActionUpdate:
		recordID, env, err := d.resolveRecord(ctx, zoneID, op)
		if recordID == "" {
			return env, err
		}
		return d.provider.UpdateRecord(ctx, zoneID, recordID, op.Record())
	case ActionDelete:
		recordID, env, err := d.resolveRecord(ctx, zoneID, op)
		if recordID == "" {
			return env, err
		}
		return d.provider.DeleteRecord(ctx, zoneID, recordID)
	}
	return provider.Envelope{}, ErrInvalidAction
}

// resolveRecord returns the record id, or the envelope/error to hand back
// when there is none.
func (d *Dispatcher) resolveRecord(ctx context.Context, zoneID string, op Operation) (string, provider.Envelope, error) {
	recordID, err := d.provider.RecordID(ctx, zoneID, op.Domain, op.RecordType)
	if err != nil {
		return "", provider.Envelope{}, fmt.Errorf("resolve record %s %s: %w", op.RecordType, op.Domain, err)
	}
	if recordID == "" {
		slog.Info("DNS record not found", "domain", op.Domain, "type", op.RecordType)
		return "", provider.Failure(MsgRecordNotFound), nil
	}
	return recordID, provider.Envelope{}, nil
}
