// internal/syncer/runner.go
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const syncAllKey = "sync-all"

// AllSyncer runs one sync over every provider.
type AllSyncer interface {
	SyncAll(ctx context.Context) (*AggregateResult, error)
}

// Runner makes sure at most one full sync runs at a time. Callers arriving
// while a sync is in flight share its result.
type Runner struct {
	syncer AllSyncer
	log    logrus.FieldLogger
	group  singleflight.Group

	// active counts executing syncs plus async triggers still waiting on
	// theirs. Every increment has exactly one matching decrement.
	mu     sync.Mutex
	active int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(syncer AllSyncer, log logrus.FieldLogger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		syncer: syncer,
		log:    log.WithField("operation", "sync-runner"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Trigger runs a sync and waits for it. shared is true when the call joined
// a sync that was already running.
func (r *Runner) Trigger(ctx context.Context) (result *AggregateResult, shared bool, err error) {
	v, err, shared := r.group.Do(syncAllKey, func() (interface{}, error) {
		r.acquire()
		defer r.release()
		return r.syncer.SyncAll(ctx)
	})
	if v != nil {
		result = v.(*AggregateResult)
	}
	return result, shared, err
}

// TriggerAsync starts a sync in the background and returns immediately.
// It reports true when a sync was already running and no new one started.
func (r *Runner) TriggerAsync() (alreadyRunning bool) {
	r.mu.Lock()
	if r.active > 0 {
		r.mu.Unlock()
		return true
	}
	r.active++
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release()
		r.runLogged(r.ctx, "manual")
	}()
	return false
}

// Running reports whether a sync is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active > 0
}

// Start triggers a sync every interval until ctx is done. A zero interval
// leaves scheduling to an external system.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.log.WithField("interval", interval).Info("Scheduled sync enabled")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runLogged(ctx, "scheduled")
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels background syncs and waits for them to return.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) runLogged(ctx context.Context, trigger string) {
	log := r.log.WithField("trigger", trigger)
	result, shared, err := r.Trigger(ctx)
	switch {
	case err != nil:
		log.WithError(err).Error("Sync run failed")
	case shared:
		log.Debug("Joined sync already in flight")
	case result != nil:
		log.WithFields(logrus.Fields{
			"sync_run_id": result.RunID,
			"status":      result.Status,
		}).Info("Sync run finished")
	}
}

func (r *Runner) acquire() {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()
}

func (r *Runner) release() {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
}
