package usage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/persistence"
)

func newTestTracker(t *testing.T, limit int) *Tracker {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tracker, err := NewTracker(store.DB(), limit)
	require.NoError(t, err)
	return tracker
}

func TestQuota_FreshUserHasQuota(t *testing.T) {
	tracker := newTestTracker(t, 3)
	require.NoError(t, tracker.CheckQuotaAvailable(context.Background(), "user-1"))
}

func TestQuota_ExhaustionAndIsolation(t *testing.T) {
	tracker := newTestTracker(t, 2)
	ctx := context.Background()

	for range 2 {
		require.NoError(t, tracker.CheckQuotaAvailable(ctx, "user-1"))
		require.NoError(t, tracker.RecordGeneration(ctx, "user-1"))
	}

	err := tracker.CheckQuotaAvailable(ctx, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	// Another user is unaffected.
	require.NoError(t, tracker.CheckQuotaAvailable(ctx, "user-2"))
}

func TestQuota_ResetsNextDay(t *testing.T) {
	tracker := newTestTracker(t, 1)
	ctx := context.Background()

	day := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return day }

	require.NoError(t, tracker.RecordGeneration(ctx, "user-1"))
	require.Error(t, tracker.CheckQuotaAvailable(ctx, "user-1"))

	tracker.now = func() time.Time { return day.Add(24 * time.Hour) }
	require.NoError(t, tracker.CheckQuotaAvailable(ctx, "user-1"))
}
