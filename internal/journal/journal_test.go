package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chaosalign/internal/errors"
)

type signalRecord struct {
	Decision   string  `msgpack:"decision"`
	Value      float64 `msgpack:"value"`
	Confidence float64 `msgpack:"confidence"`
}

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return j
}

func TestRecordAndGet(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	id, err := j.Record(ctx, KindSignal, "market", signalRecord{Decision: "BUY", Value: 0.42, Confidence: 0.8})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	e, err := j.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, KindSignal, e.Kind)
	assert.Equal(t, "market", e.Subject)

	var got signalRecord
	require.NoError(t, e.Decode(&got))
	assert.Equal(t, "BUY", got.Decision)
	assert.Equal(t, 0.42, got.Value)
	assert.Equal(t, 0.8, got.Confidence)
}

func TestGet_Missing(t *testing.T) {
	j := openTest(t)
	_, err := j.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestList_FiltersAndOrders(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := j.Record(ctx, KindSnapshot, "growth", map[string]float64{"fused": float64(i)})
		require.NoError(t, err)
	}
	_, err := j.Record(ctx, KindSnapshot, "income", map[string]float64{"fused": 9})
	require.NoError(t, err)
	_, err = j.Record(ctx, KindImpact, "AAPL", map[string]float64{"total": 0.01})
	require.NoError(t, err)

	entries, err := j.List(ctx, Filter{Kind: KindSnapshot, Subject: "growth"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	var newest map[string]float64
	require.NoError(t, entries[0].Decode(&newest))
	assert.Equal(t, 2.0, newest["fused"])
	assert.True(t, entries[0].Timestamp.After(entries[2].Timestamp))

	limited, err := j.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, KindImpact, limited[0].Kind)

	since, err := j.List(ctx, Filter{Since: time.Date(2024, 1, 1, 0, 0, 4, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	n, err := j.Count(ctx, KindSnapshot)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = j.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPrune(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := j.Record(ctx, KindScore, "AAPL", i)
		require.NoError(t, err)
	}

	removed, err := j.Prune(ctx, time.Date(2024, 1, 1, 0, 0, 3, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err := j.Count(ctx, KindScore)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Record(context.Background(), KindSignal, "market", "HOLD")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	n, err := j.Count(context.Background(), KindSignal)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, isBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isBusy(errors.New("other")))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "journal.db", filepath.Base(cfg.Path))
}
