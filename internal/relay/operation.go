package relay

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/evanofslack/dns-relay/internal/provider"
)

const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	MsgZoneNotFound   = "Unable to get Zone ID"
	MsgRecordNotFound = "DNS Record not found"
	MsgUpstreamFailed = "Upstream request failed"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidAction = errors.New("invalid action")
)

// Cloudflare rejects the proxied flag on every other record type.
var proxiableTypes = []string{"A", "AAAA", "CNAME"}

// Operation is one inbound record change. Content, TTL and Proxied keep the
// caller's JSON untouched so the upstream judges their values.
type Operation struct {
	Action     string          `json:"action"`
	RecordType string          `json:"recordType"`
	Domain     string          `json:"domain"`
	Content    json.RawMessage `json:"content,omitempty"`
	TTL        json.RawMessage `json:"ttl,omitempty"`
	Proxied    json.RawMessage `json:"proxied,omitempty"`
}

// UnmarshalJSON accepts any JSON type for every field. Non-string action,
// recordType and domain values are taken as their JSON text.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*op = Operation{
		Action:     text(fields["action"]),
		RecordType: text(fields["recordType"]),
		Domain:     text(fields["domain"]),
		Content:    fields["content"],
		TTL:        fields["ttl"],
		Proxied:    fields["proxied"],
	}
	return nil
}

// text renders a JSON value as a string. Falsy values (null, false, zero,
// empty string) come back empty and so count as missing.
func text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	v := strings.TrimSpace(string(raw))
	if v == "null" || v == "false" {
		return ""
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == 0 {
		return ""
	}
	return v
}

// Validate only checks presence; values are left for the upstream to judge.
func (op Operation) Validate() error {
	if op.Action == "" || op.RecordType == "" || op.Domain == "" {
		return ErrMissingFields
	}
	switch op.Action {
	case ActionAdd, ActionUpdate, ActionDelete:
		return nil
	}
	return ErrInvalidAction
}

// Record builds the create/replace payload for op.
func (op Operation) Record() provider.Record {
	record := provider.Record{
		Type:    op.RecordType,
		Name:    op.Domain,
		Content: op.Content,
		TTL:     op.TTL,
	}
	if lo.Contains(proxiableTypes, op.RecordType) {
		record.Proxied = op.Proxied
	}
	return record
}

// BaseDomain returns the last two labels of fqdn. Multi-label public
// suffixes such as co.uk are not recognised: "foo.co.uk" yields "co.uk".
func BaseDomain(fqdn string) string {
	parts := strings.Split(fqdn, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return fqdn
}
