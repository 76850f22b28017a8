package ddns

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanofslack/dns-relay/internal/config"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
	"github.com/evanofslack/dns-relay/internal/relay"
)

type MockDispatcher struct {
	results []provider.Envelope
	err     error
	calls   []relay.Operation
}

func (m *MockDispatcher) Dispatch(ctx context.Context, op relay.Operation) (provider.Envelope, error) {
	m.calls = append(m.calls, op)
	if m.err != nil {
		return provider.Envelope{}, m.err
	}
	env := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return env, nil
}

type MockSource struct {
	addrs []netip.Addr
	err   error
}

func (m *MockSource) Current(ctx context.Context) (netip.Addr, error) {
	if m.err != nil {
		return netip.Addr{}, m.err
	}
	addr := m.addrs[0]
	if len(m.addrs) > 1 {
		m.addrs = m.addrs[1:]
	}
	return addr, nil
}

func ok(t *testing.T) provider.Envelope {
	t.Helper()
	env, err := provider.Decode([]byte(`{"success":true,"errors":[],"result":{"id":"rec-1"}}`))
	require.NoError(t, err)
	return env
}

func newTestUpdater(t *testing.T, d Dispatcher, s AddrSource) *Updater {
	t.Helper()
	u, err := NewUpdater(config.DDNS{Domain: "home.example.com", TTL: 120, Proxied: true, Interval: time.Minute}, d, s, metrics.New(false))
	require.NoError(t, err)
	return u
}

func TestParseIP(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"myip json", `{"myip":"203.0.113.7","location":"x"}`, "203.0.113.7", false},
		{"ip json", `{"ip":"2001:db8::1"}`, "2001:db8::1", false},
		{"plain text", "198.51.100.2\n", "198.51.100.2", false},
		{"mapped v4", "::ffff:192.0.2.1", "192.0.2.1", false},
		{"empty json", `{"myip":""}`, "", true},
		{"garbage", "<html>rate limited</html>", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := parseIP([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestRecordType(t *testing.T) {
	assert.Equal(t, "A", RecordType(netip.MustParseAddr("192.0.2.1")))
	assert.Equal(t, "AAAA", RecordType(netip.MustParseAddr("2001:db8::1")))
}

func TestIPSourceCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"myip":"203.0.113.7"}`)
	}))
	defer srv.Close()

	addr, err := NewIPSource(srv.URL, srv.Client()).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.7"), addr)
}

func TestIPSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewIPSource(srv.URL, srv.Client()).Current(context.Background())
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestNewUpdaterValidation(t *testing.T) {
	_, err := NewUpdater(config.DDNS{Interval: time.Minute}, &MockDispatcher{}, &MockSource{}, metrics.New(false))
	assert.Error(t, err)

	_, err = NewUpdater(config.DDNS{Domain: "home.example.com"}, &MockDispatcher{}, &MockSource{}, metrics.New(false))
	assert.Error(t, err)
}

func TestRunOnceUpdates(t *testing.T) {
	d := &MockDispatcher{results: []provider.Envelope{ok(t)}}
	u := newTestUpdater(t, d, &MockSource{addrs: []netip.Addr{netip.MustParseAddr("203.0.113.7")}})

	require.NoError(t, u.RunOnce(context.Background()))
	require.Len(t, d.calls, 1)

	op := d.calls[0]
	assert.Equal(t, relay.ActionUpdate, op.Action)
	assert.Equal(t, "A", op.RecordType)
	assert.Equal(t, "home.example.com", op.Domain)
	assert.JSONEq(t, `"203.0.113.7"`, string(op.Content))
	assert.JSONEq(t, `120`, string(op.TTL))
	assert.JSONEq(t, `true`, string(op.Proxied))
}

func TestRunOnceFallsBackToAdd(t *testing.T) {
	d := &MockDispatcher{results: []provider.Envelope{provider.Failure(relay.MsgRecordNotFound), ok(t)}}
	u := newTestUpdater(t, d, &MockSource{addrs: []netip.Addr{netip.MustParseAddr("2001:db8::1")}})

	require.NoError(t, u.RunOnce(context.Background()))
	require.Len(t, d.calls, 2)
	assert.Equal(t, relay.ActionUpdate, d.calls[0].Action)
	assert.Equal(t, relay.ActionAdd, d.calls[1].Action)
	assert.Equal(t, "AAAA", d.calls[1].RecordType)
}

func TestRunOnceSkipsUnchanged(t *testing.T) {
	d := &MockDispatcher{results: []provider.Envelope{ok(t)}}
	source := &MockSource{addrs: []netip.Addr{
		netip.MustParseAddr("203.0.113.7"),
		netip.MustParseAddr("203.0.113.7"),
		netip.MustParseAddr("203.0.113.8"),
	}}
	u := newTestUpdater(t, d, source)

	require.NoError(t, u.RunOnce(context.Background()))
	require.NoError(t, u.RunOnce(context.Background()))
	assert.Len(t, d.calls, 1)

	require.NoError(t, u.RunOnce(context.Background()))
	require.Len(t, d.calls, 2)
	assert.JSONEq(t, `"203.0.113.8"`, string(d.calls[1].Content))
}

func TestRunOnceRetriesAfterFailure(t *testing.T) {
	d := &MockDispatcher{results: []provider.Envelope{provider.Failure("Authentication error"), ok(t)}}
	u := newTestUpdater(t, d, &MockSource{addrs: []netip.Addr{netip.MustParseAddr("203.0.113.7")}})

	err := u.RunOnce(context.Background())
	assert.ErrorContains(t, err, "Authentication error")

	require.NoError(t, u.RunOnce(context.Background()))
	assert.Len(t, d.calls, 2)
}

func TestRunOnceErrors(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		d := &MockDispatcher{}
		u := newTestUpdater(t, d, &MockSource{err: errors.New("no route to host")})
		assert.Error(t, u.RunOnce(context.Background()))
		assert.Empty(t, d.calls)
	})

	t.Run("dispatch", func(t *testing.T) {
		d := &MockDispatcher{err: errors.New("i/o timeout")}
		u := newTestUpdater(t, d, &MockSource{addrs: []netip.Addr{netip.MustParseAddr("203.0.113.7")}})
		assert.ErrorContains(t, u.RunOnce(context.Background()), "i/o timeout")
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	d := &MockDispatcher{results: []provider.Envelope{ok(t)}}
	u := newTestUpdater(t, d, &MockSource{addrs: []netip.Addr{netip.MustParseAddr("203.0.113.7")}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("updater did not stop")
	}
}
