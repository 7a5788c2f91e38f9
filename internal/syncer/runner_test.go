package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/testutil"
)

type blockingSyncer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingSyncer() *blockingSyncer {
	return &blockingSyncer{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingSyncer) SyncAll(ctx context.Context) (*AggregateResult, error) {
	b.calls.Add(1)
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &AggregateResult{RunID: uuid.New(), Status: models.SyncStatusSuccess}, nil
}

func TestRunnerRejectsOverlappingAsyncTriggers(t *testing.T) {
	syncer := newBlockingSyncer()
	runner := NewRunner(syncer, testutil.NullLogger())

	assert.False(t, runner.TriggerAsync())
	<-syncer.started

	assert.True(t, runner.Running())
	assert.True(t, runner.TriggerAsync())

	close(syncer.release)
	runner.Stop()

	assert.Equal(t, int32(1), syncer.calls.Load())
	assert.False(t, runner.Running())
}

func TestRunnerTriggerReturnsResult(t *testing.T) {
	syncer := newBlockingSyncer()
	close(syncer.release)
	runner := NewRunner(syncer, testutil.NullLogger())

	result, shared, err := runner.Trigger(context.Background())

	require.NoError(t, err)
	assert.False(t, shared)
	require.NotNil(t, result)
	assert.Equal(t, models.SyncStatusSuccess, result.Status)
	assert.False(t, runner.Running())
}

func TestRunnerFlagClearsAfterJoinedTrigger(t *testing.T) {
	syncer := newBlockingSyncer()
	runner := NewRunner(syncer, testutil.NullLogger())

	require.False(t, runner.TriggerAsync())
	<-syncer.started

	joined := make(chan struct{})
	go func() {
		defer close(joined)
		_, _, _ = runner.Trigger(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	close(syncer.release)

	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("joined trigger did not return")
	}
	require.Eventually(t, func() bool { return !runner.Running() }, 2*time.Second, time.Millisecond)

	assert.False(t, runner.TriggerAsync(), "a finished sync must not block the next one")
	runner.Stop()
	assert.False(t, runner.Running())
}

func TestRunnerFlagSettlesUnderConcurrentTriggers(t *testing.T) {
	syncer := newBlockingSyncer()
	close(syncer.release)
	runner := NewRunner(syncer, testutil.NullLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			runner.TriggerAsync()
		}()
		go func() {
			defer wg.Done()
			_, _, _ = runner.Trigger(context.Background())
		}()
	}
	wg.Wait()
	runner.Stop()

	assert.False(t, runner.Running())
	assert.False(t, runner.TriggerAsync())
	runner.Stop()
}

func TestRunnerStopCancelsInFlightSync(t *testing.T) {
	syncer := newBlockingSyncer()
	runner := NewRunner(syncer, testutil.NullLogger())

	runner.TriggerAsync()
	<-syncer.started

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestRunnerScheduledSyncs(t *testing.T) {
	syncer := newBlockingSyncer()
	close(syncer.release)
	runner := NewRunner(syncer, testutil.NullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	runner.Stop()
}
