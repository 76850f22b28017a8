package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/libdns/libdns"
)

var ErrDisabled = errors.New("audit journal disabled")

type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Entry describes one dispatched operation. It never carries credentials or
// record content.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	RequestID  string    `json:"requestId,omitempty"`
	Action     string    `json:"action"`
	RecordType string    `json:"recordType"`
	Domain     string    `json:"domain"`
	Zone       string    `json:"zone"`
	Name       string    `json:"name"`
	Success    bool      `json:"success"`
	Errors     []string  `json:"errors,omitempty"`
}

// NewEntry stamps an entry for domain within zone; Name is the record name
// relative to the zone.
func NewEntry(ctx context.Context, action, recordType, domain, zone string) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Time:       time.Now().UTC(),
		RequestID:  RequestID(ctx),
		Action:     action,
		RecordType: recordType,
		Domain:     domain,
		Zone:       zone,
		Name:       libdns.RelativeName(domain, zone),
	}
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type nopJournal struct{}

// Nop is used when no journal path is configured.
func Nop() Journal { return nopJournal{} }

func (nopJournal) Record(context.Context, Entry) error { return nil }

func (nopJournal) Recent(context.Context, int) ([]Entry, error) { return nil, ErrDisabled }

func (nopJournal) Close() error { return nil }
