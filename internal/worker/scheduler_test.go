package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"finanzas/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(context.Background(), nil, nil)
	_, err := s.Every("noop", 0, func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Zero(t, s.Entries())
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(context.Background(), time.UTC, nil)
	var runs atomic.Int32
	_, err := s.Every("count", time.Second, func(context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScheduler(ctx, nil, nil)
	var runs atomic.Int32

	s.wrap("cancelled", func(context.Context) error {
		runs.Add(1)
		return nil
	})()
	assert.Zero(t, runs.Load())
}

func TestMaintenanceJobs(t *testing.T) {
	store := newFakeStore()
	store.add(1)
	ctx := context.Background()

	require.NoError(t, PruneSessionsJob(store, nil)(ctx))
	assert.Equal(t, 1, store.pruned)

	w := NewSyncWorker(store, memory.New(), 10, nil)
	require.NoError(t, SweepJob(w)(ctx))
	assert.Equal(t, "synced", string(store.status[1]))
}
