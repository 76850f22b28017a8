package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is the upstream DNS API. Lookups return an empty identifier when
// nothing matches or the upstream reports failure; mutations return the
// upstream envelope whatever its success flag. A non-nil error always means
// the call itself failed (transport, undecodable body).
type Provider interface {
	ZoneID(ctx context.Context, name string) (string, error)
	RecordID(ctx context.Context, zoneID, name, recordType string) (string, error)
	CreateRecord(ctx context.Context, zoneID string, record Record) (Envelope, error)
	UpdateRecord(ctx context.Context, zoneID, recordID string, record Record) (Envelope, error)
	DeleteRecord(ctx context.Context, zoneID, recordID string) (Envelope, error)
}

// Record is the create/replace payload. Optional values hold the caller's
// JSON as given and are left out of the body when unset.
type Record struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content,omitempty"`
	TTL     json.RawMessage `json:"ttl,omitempty"`
	Proxied json.RawMessage `json:"proxied,omitempty"`
}

// Raw encodes v for use as an optional Record value.
func Raw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

type ErrorInfo struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Envelope is the provider's response wrapper. Envelopes decoded from an
// upstream body keep the original bytes and marshal back to them unchanged.
type Envelope struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Errors   []ErrorInfo     `json:"errors"`
	Messages []ErrorInfo     `json:"messages,omitempty"`

	raw []byte
}

type envelope Envelope

func (e Envelope) MarshalJSON() ([]byte, error) {
	return e.Body()
}

// Body is the response body to relay: the upstream bytes untouched when the
// envelope was decoded, otherwise its JSON encoding.
func (e Envelope) Body() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(envelope(e))
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var v envelope
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = Envelope(v)
	e.raw = append([]byte(nil), data...)
	return nil
}

// Decode parses an upstream response body and keeps all of it, surrounding
// whitespace included, for Body.
func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	env.raw = append([]byte(nil), body...)
	return env, nil
}

// Failure builds a locally generated unsuccessful envelope.
func Failure(messages ...string) Envelope {
	env := Envelope{Errors: make([]ErrorInfo, 0, len(messages))}
	for _, msg := range messages {
		env.Errors = append(env.Errors, ErrorInfo{Message: msg})
	}
	return env
}

// ErrorMessages flattens the error list, mainly for logs and the audit journal.
func (e Envelope) ErrorMessages() []string {
	msgs := make([]string, 0, len(e.Errors))
	for _, info := range e.Errors {
		msgs = append(msgs, info.Message)
	}
	return msgs
}

// Identified is the part of a listing result the resolvers care about.
type Identified struct {
	ID string `json:"id"`
}

// FirstID returns the id of the first element of a successful listing.
func (e Envelope) FirstID() string {
	if !e.Success || len(e.Result) == 0 {
		return ""
	}
	var items []Identified
	if err := json.Unmarshal(e.Result, &items); err != nil || len(items) == 0 {
		return ""
	}
	return items[0].ID
}
