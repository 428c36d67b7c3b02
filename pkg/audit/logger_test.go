package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

type failingStore struct {
	Store
}

func (failingStore) Insert(context.Context, storage.Collection, storage.Record) error {
	return errors.New("disk full")
}

func newTestLogger(t *testing.T, store Store) (*Logger, *observability.Metrics, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	metrics := observability.NewNopMetrics()
	l := NewLogger(store, observability.NewLogger(observability.DebugLevel, &buf), metrics)

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	l.newID = func() string { return fmt.Sprintf("e-%04d", tick) }
	return l, metrics, &buf
}

func appendN(t *testing.T, l *Logger, n int, userID string) {
	t.Helper()
	for i := 0; i < n; i++ {
		ok := l.Append(context.Background(), Entry{UserID: userID, Action: ActionContentUpdate})
		require.True(t, ok)
	}
}

func TestLogger_Append(t *testing.T) {
	db := storage.NewMemoryStore()
	l, metrics, _ := newTestLogger(t, db)
	ctx := context.Background()

	ok := l.Append(ctx, Entry{ID: "ignored", UserID: "u-1", UserName: "alice", Action: ActionLogin})
	require.True(t, ok)

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, "ignored", entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Equal(t, ActionLogin, entries[0].Action)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuditWritesTotal.WithLabelValues("login")))
}

func TestLogger_AppendFailureIsReported(t *testing.T) {
	l, metrics, buf := newTestLogger(t, failingStore{storage.NewMemoryStore()})

	ok := l.Append(context.Background(), Entry{UserID: "u-1", Action: ActionUserDelete})
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuditWriteFailuresTotal))
	assert.Contains(t, buf.String(), "failed to write audit entry")
	assert.Contains(t, buf.String(), "disk full")
}

func TestLogger_AppendRejectsUnknownAction(t *testing.T) {
	db := storage.NewMemoryStore()
	l, metrics, _ := newTestLogger(t, db)

	ok := l.Append(context.Background(), Entry{UserID: "u-1", Action: "drop_tables"})
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuditWriteFailuresTotal))

	n, err := db.Count(context.Background(), storage.CollectionLogs, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogger_RecentIsBoundedAndSorted(t *testing.T) {
	db := storage.NewMemoryStore()
	l, _, _ := newTestLogger(t, db)
	ctx := context.Background()

	appendN(t, l, 30, "u-1")

	all, err := l.Recent(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, all, 30)

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp))
	}
	assert.Equal(t, all[:10], entries)
}

func TestLogger_ByUser(t *testing.T) {
	db := storage.NewMemoryStore()
	l, _, _ := newTestLogger(t, db)
	ctx := context.Background()

	appendN(t, l, 3, "u-1")
	appendN(t, l, 2, "u-2")
	appendN(t, l, 1, "u-1")

	entries, err := l.ByUser(ctx, "u-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, "u-1", e.UserID)
	}

	entries, err = l.ByUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{1, 1},
		{250, 250},
		{1000, 1000},
		{5000, MaxLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.in), "limit %d", tt.in)
	}
}
