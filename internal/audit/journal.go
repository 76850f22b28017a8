package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/dns-relay/internal/metrics"
)

const entryPrefix = "entry:"

type badgerJournal struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func New(path string, metrics *metrics.Metrics) (Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &badgerJournal{db: db, metrics: metrics}, nil
}

// Keys sort by time so a reverse scan yields the newest entries first.
func entryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", entryPrefix, e.Time.UnixNano(), e.ID))
}

func (j *badgerJournal) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		j.metrics.IncAuditWrite(false)
		return err
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry), data)
	})
	j.metrics.IncAuditWrite(err == nil)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (j *badgerJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries := []Entry{}
	if limit <= 0 {
		return entries, nil
	}

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		seek := append([]byte(entryPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(entries) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit entries: %w", err)
	}
	return entries, nil
}

func (j *badgerJournal) Close() error {
	return j.db.Close()
}
