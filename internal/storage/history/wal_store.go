// Package history persists position change reports in an append-only
// WAL so a notification failure never loses the audit trail.
package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"walletwatch/internal/domain"
)

const (
	// DefaultDir is where change history segments live by default.
	DefaultDir = "./wal/changes"

	segmentLimit = 1000
	maxSegments  = 10

	recordKeyPrefix = "change_"
)

// WALStore is the append-only audit sink for change reports.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed history store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "history_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init history WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one audit record. Records are never mutated or deleted.
func (s *WALStore) Append(rec domain.AuditRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("history store is not initialized")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal audit record")
	}

	key := fmt.Sprintf("%s%d", recordKeyPrefix, rec.Iteration)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Last returns up to n most recent records, newest first. A record that
// fails to decode is returned with the raw payload as its body so the
// history stays inspectable.
func (s *WALStore) Last(n int) ([]domain.AuditRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("history store is not initialized")
	}
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditRecord, 0, n)
	for idx := s.wal.CurrentIndex(); idx > 0 && len(out) < n; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, recordKeyPrefix) {
			continue
		}

		var rec domain.AuditRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			out = append(out, domain.AuditRecord{Body: string(payload)})
			continue
		}
		out = append(out, rec)
	}

	return out, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("history store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
