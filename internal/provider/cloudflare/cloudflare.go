package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/dns-relay/internal/config"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
)

// CloudflareProvider drives the typed cloudflare-go client. The SDK turns
// upstream failures into Go errors, so envelopes are rebuilt from its results
// and API errors. Updates go out as PATCH, which is how the SDK edits records.
type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
}

// apiError matches the SDK's typed errors (RequestError, AuthorizationError, ...).
type apiError interface {
	ErrorCodes() []int
	ErrorMessages() []string
}

func New(cfg config.Cloudflare, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	return NewWithClient(cfg, &http.Client{Timeout: cfg.Timeout}, metrics)
}

func NewWithClient(cfg config.Cloudflare, hc *http.Client, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	client, err := cloudflare.NewWithAPIToken(cfg.Token.Reveal(),
		cloudflare.BaseURL(cfg.BaseURL),
		cloudflare.HTTPClient(hc),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
	}, nil
}

func (p *CloudflareProvider) ZoneID(ctx context.Context, name string) (string, error) {
	slog.Debug("Looking up zone", "zone", name)

	zones, err := p.client.ListZones(ctx, name)
	if err != nil {
		p.metrics.IncUpstreamRequest("zone", false)
		if _, ok := apiErrors(err); ok {
			slog.Warn("Zone lookup rejected", "zone", name, "error", err)
			return "", nil
		}
		return "", fmt.Errorf("failed to list zones: %w", err)
	}

	p.metrics.IncUpstreamRequest("zone", true)
	if len(zones) == 0 {
		return "", nil
	}
	return zones[0].ID, nil
}

func (p *CloudflareProvider) RecordID(ctx context.Context, zoneID, name, recordType string) (string, error) {
	slog.Debug("Looking up DNS record", "zone_id", zoneID, "name", name, "type", recordType)

	params := cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: name,
	}
	records, _, err := p.client.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncUpstreamRequest("record", false)
		if _, ok := apiErrors(err); ok {
			slog.Warn("DNS record lookup rejected", "zone_id", zoneID, "name", name, "error", err)
			return "", nil
		}
		return "", fmt.Errorf("failed to list DNS records: %w", err)
	}

	p.metrics.IncUpstreamRequest("record", true)
	if len(records) == 0 {
		return "", nil
	}
	return records[0].ID, nil
}

func (p *CloudflareProvider) CreateRecord(ctx context.Context, zoneID string, record provider.Record) (provider.Envelope, error) {
	slog.Info("Creating DNS record", "zone_id", zoneID, "name", record.Name, "type", record.Type)
	start := time.Now()

	values, err := decodeValues(record)
	if err != nil {
		slog.Info("Rejected DNS record values", "name", record.Name, "error", err)
		return provider.Failure(err.Error()), nil
	}

	params := cloudflare.CreateDNSRecordParams{
		Type:    record.Type,
		Name:    record.Name,
		Content: values.content,
		TTL:     values.ttl,
		Proxied: values.proxied,
	}

	created, err := p.client.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncUpstreamRequest("create", false)
		return failure(err, "failed to create DNS record")
	}

	p.metrics.IncUpstreamRequest("create", true)
	slog.Debug("Created DNS record", "zone_id", zoneID, "name", record.Name, "type", record.Type, "duration", time.Since(start))
	return success(created)
}

func (p *CloudflareProvider) UpdateRecord(ctx context.Context, zoneID, recordID string, record provider.Record) (provider.Envelope, error) {
	slog.Info("Updating DNS record", "zone_id", zoneID, "record_id", recordID, "name", record.Name, "type", record.Type)
	start := time.Now()

	values, err := decodeValues(record)
	if err != nil {
		slog.Info("Rejected DNS record values", "name", record.Name, "error", err)
		return provider.Failure(err.Error()), nil
	}

	params := cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    record.Type,
		Name:    record.Name,
		Content: values.content,
		TTL:     values.ttl,
		Proxied: values.proxied,
	}

	updated, err := p.client.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncUpstreamRequest("update", false)
		return failure(err, "failed to update DNS record")
	}

	p.metrics.IncUpstreamRequest("update", true)
	slog.Debug("Updated DNS record", "zone_id", zoneID, "name", record.Name, "type", record.Type, "duration", time.Since(start))
	return success(updated)
}

func (p *CloudflareProvider) DeleteRecord(ctx context.Context, zoneID, recordID string) (provider.Envelope, error) {
	slog.Info("Deleting DNS record", "zone_id", zoneID, "record_id", recordID)
	start := time.Now()

	err := p.client.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), recordID)
	if err != nil {
		p.metrics.IncUpstreamRequest("delete", false)
		return failure(err, "failed to delete DNS record")
	}

	p.metrics.IncUpstreamRequest("delete", true)
	slog.Debug("Deleted DNS record", "zone_id", zoneID, "record_id", recordID, "duration", time.Since(start))
	return success(provider.Identified{ID: recordID})
}

func success(result any) (provider.Envelope, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return provider.Envelope{}, fmt.Errorf("encode result: %w", err)
	}
	return provider.Envelope{Success: true, Result: data, Errors: []provider.ErrorInfo{}}, nil
}

// failure turns SDK API errors into an unsuccessful envelope and passes
// anything else (transport, decoding) back as an error.
func failure(err error, msg string) (provider.Envelope, error) {
	if infos, ok := apiErrors(err); ok {
		return provider.Envelope{Errors: infos}, nil
	}
	return provider.Envelope{}, fmt.Errorf("%s: %w", msg, err)
}

func apiErrors(err error) ([]provider.ErrorInfo, bool) {
	var cfErr *cloudflare.Error
	if errors.As(err, &cfErr) {
		infos := make([]provider.ErrorInfo, 0, len(cfErr.Errors))
		for _, e := range cfErr.Errors {
			infos = append(infos, provider.ErrorInfo{Code: e.Code, Message: e.Message})
		}
		return withFallback(infos, err), true
	}

	var typed apiError
	if errors.As(err, &typed) {
		codes := typed.ErrorCodes()
		msgs := typed.ErrorMessages()
		infos := make([]provider.ErrorInfo, 0, len(msgs))
		for i, m := range msgs {
			info := provider.ErrorInfo{Message: m}
			if i < len(codes) {
				info.Code = codes[i]
			}
			infos = append(infos, info)
		}
		return withFallback(infos, err), true
	}
	return nil, false
}

func withFallback(infos []provider.ErrorInfo, err error) []provider.ErrorInfo {
	if len(infos) == 0 {
		return []provider.ErrorInfo{{Message: err.Error()}}
	}
	return infos
}

type recordValues struct {
	content string
	ttl     int
	proxied *bool
}

// decodeValues fits the caller's raw values to the SDK's typed params. Unset
// and null values stay zero.
func decodeValues(record provider.Record) (recordValues, error) {
	var v recordValues
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  any
	}{
		{"content", record.Content, &v.content},
		{"ttl", record.TTL, &v.ttl},
		{"proxied", record.Proxied, &v.proxied},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return recordValues{}, fmt.Errorf("invalid %s value: %s", f.name, f.raw)
		}
	}
	return v, nil
}
