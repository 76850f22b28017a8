package ddns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
)

const maxIPResponseBytes = 64 << 10

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// IPSource asks an echo service for this host's public address.
type IPSource struct {
	url  string
	http Httper
}

func NewIPSource(url string, client Httper) *IPSource {
	return &IPSource{url: url, http: client}
}

func (s *IPSource) Current(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("build ip request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("fetch public ip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("fetch public ip: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIPResponseBytes))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read ip response: %w", err)
	}
	return parseIP(body)
}

// parseIP accepts {"myip": "..."}, {"ip": "..."} or a bare address.
func parseIP(body []byte) (netip.Addr, error) {
	raw := strings.TrimSpace(string(body))

	var doc struct {
		MyIP string `json:"myip"`
		IP   string `json:"ip"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		raw = doc.MyIP
		if raw == "" {
			raw = doc.IP
		}
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse public ip %q: %w", raw, err)
	}
	return addr.Unmap(), nil
}

// RecordType is A for IPv4 and AAAA for IPv6.
func RecordType(addr netip.Addr) string {
	if addr.Is4() {
		return "A"
	}
	return "AAAA"
}
