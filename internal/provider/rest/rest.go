package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evanofslack/dns-relay/internal/config"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
)

const maxBodyBytes = 4 << 20

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider talks to the Cloudflare v4 REST API directly and hands back the
// response envelopes as received.
type Provider struct {
	baseURL string
	token   config.Secret
	http    Httper
	metrics *metrics.Metrics
}

func New(cfg config.Cloudflare, metrics *metrics.Metrics) (*Provider, error) {
	return NewWithClient(cfg, &http.Client{Timeout: cfg.Timeout}, metrics)
}

func NewWithClient(cfg config.Cloudflare, client Httper, metrics *metrics.Metrics) (*Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("cloudflare api token required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse cloudflare base url: %w", err)
	}
	return &Provider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    client,
		metrics: metrics,
	}, nil
}

func (p *Provider) ZoneID(ctx context.Context, name string) (string, error) {
	slog.Debug("Looking up zone", "zone", name)

	query := url.Values{"name": {name}}
	env, err := p.do(ctx, "zone", http.MethodGet, "/zones?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("list zones: %w", err)
	}
	return env.FirstID(), nil
}

func (p *Provider) RecordID(ctx context.Context, zoneID, name, recordType string) (string, error) {
	slog.Debug("Looking up DNS record", "zone_id", zoneID, "name", name, "type", recordType)

	query := url.Values{"type": {recordType}, "name": {name}}
	path := fmt.Sprintf("/zones/%s/dns_records?%s", url.PathEscape(zoneID), query.Encode())
	env, err := p.do(ctx, "record", http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("list dns records: %w", err)
	}
	return env.FirstID(), nil
}

func (p *Provider) CreateRecord(ctx context.Context, zoneID string, record provider.Record) (provider.Envelope, error) {
	slog.Info("Creating DNS record", "zone_id", zoneID, "name", record.Name, "type", record.Type)

	path := fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(zoneID))
	env, err := p.do(ctx, "create", http.MethodPost, path, record)
	if err != nil {
		return provider.Envelope{}, fmt.Errorf("create dns record: %w", err)
	}
	return env, nil
}

func (p *Provider) UpdateRecord(ctx context.Context, zoneID, recordID string, record provider.Record) (provider.Envelope, error) {
	slog.Info("Updating DNS record", "zone_id", zoneID, "record_id", recordID, "name", record.Name, "type", record.Type)

	path := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(zoneID), url.PathEscape(recordID))
	env, err := p.do(ctx, "update", http.MethodPut, path, record)
	if err != nil {
		return provider.Envelope{}, fmt.Errorf("update dns record: %w", err)
	}
	return env, nil
}

func (p *Provider) DeleteRecord(ctx context.Context, zoneID, recordID string) (provider.Envelope, error) {
	slog.Info("Deleting DNS record", "zone_id", zoneID, "record_id", recordID)

	path := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(zoneID), url.PathEscape(recordID))
	env, err := p.do(ctx, "delete", http.MethodDelete, path, nil)
	if err != nil {
		return provider.Envelope{}, fmt.Errorf("delete dns record: %w", err)
	}
	return env, nil
}

// do sends one authorized request and decodes the envelope. Upstream status
// codes are not inspected: the envelope's success flag is authoritative.
func (p *Provider) do(ctx context.Context, operation, method, path string, payload any) (provider.Envelope, error) {
	start := time.Now()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return provider.Envelope{}, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return provider.Envelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token.Reveal())
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		p.metrics.IncUpstreamRequest(operation, false)
		return provider.Envelope{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		p.metrics.IncUpstreamRequest(operation, false)
		return provider.Envelope{}, fmt.Errorf("read response, status=%d: %w", resp.StatusCode, err)
	}

	env, err := provider.Decode(data)
	if err != nil {
		p.metrics.IncUpstreamRequest(operation, false)
		return provider.Envelope{}, fmt.Errorf("cloudflare api response, status=%d: %w", resp.StatusCode, err)
	}

	p.metrics.IncUpstreamRequest(operation, env.Success)
	slog.Debug("Cloudflare api call", "operation", operation, "method", method, "status", resp.StatusCode, "success", env.Success, "duration", time.Since(start))
	return env, nil
}
