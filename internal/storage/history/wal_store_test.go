package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"walletwatch/internal/domain"
)

func newStore(t *testing.T) *WALStore {
	t.Helper()

	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func record(iteration uint64, subject string) domain.AuditRecord {
	return domain.AuditRecord{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Iteration: iteration,
		Subject:   subject,
		Body:      "body for " + subject,
	}
}

func TestAppendAndLast(t *testing.T) {
	s := newStore(t)

	for i := uint64(2); i <= 6; i++ {
		require.NoError(t, s.Append(record(i, "change")))
	}

	recent, err := s.Last(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// newest first
	require.Equal(t, uint64(6), recent[0].Iteration)
	require.Equal(t, uint64(5), recent[1].Iteration)
	require.Equal(t, uint64(4), recent[2].Iteration)
	require.Equal(t, "body for change", recent[0].Body)
}

func TestLastWithFewerRecordsThanRequested(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Append(record(2, "only")))

	recent, err := s.Last(5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "only", recent[0].Subject)
}

func TestLastOnEmptyStore(t *testing.T) {
	s := newStore(t)

	recent, err := s.Last(3)
	require.NoError(t, err)
	require.Empty(t, recent)

	recent, err = s.Last(0)
	require.NoError(t, err)
	require.Nil(t, recent)
}

func TestUninitializedStore(t *testing.T) {
	var s *WALStore

	require.Error(t, s.Append(record(2, "x")))

	_, err := s.Last(1)
	require.Error(t, err)
}
