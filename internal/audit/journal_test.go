package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanofslack/dns-relay/internal/metrics"
)

func newTestJournal(t *testing.T) Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "badger"), metrics.New(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	domains := []string{"a.example.com", "b.example.com", "c.example.com"}
	for i, d := range domains {
		e := NewEntry(ctx, "add", "A", d, "example.com")
		e.Time = base.Add(time.Duration(i) * time.Minute)
		e.Success = i != 1
		if !e.Success {
			e.Errors = []string{"Record already exists."}
		}
		require.NoError(t, j.Record(ctx, e))
	}

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c.example.com", recent[0].Domain)
	assert.Equal(t, "b.example.com", recent[1].Domain)
	assert.False(t, recent[1].Success)
	assert.Equal(t, []string{"Record already exists."}, recent[1].Errors)

	all, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecentEmptyJournal(t *testing.T) {
	j := newTestJournal(t)
	entries, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewEntry(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	e := NewEntry(ctx, "update", "CNAME", "www.example.com", "example.com")

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Time.IsZero())
	assert.Equal(t, "req-42", e.RequestID)
	assert.Equal(t, "update", e.Action)
	assert.Equal(t, "CNAME", e.RecordType)
	assert.Equal(t, "example.com", e.Zone)
	assert.Equal(t, "www", e.Name)
}

func TestRequestIDMissing(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestNopJournal(t *testing.T) {
	j := Nop()
	assert.NoError(t, j.Record(context.Background(), Entry{}))
	_, err := j.Recent(context.Background(), 5)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, j.Close())
}

func TestNewInvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(filepath.Join(file, "badger"), metrics.New(false))
	assert.Error(t, err)
}
