// internal/syncer/batch.go
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/javajoker/storefront-analytics/internal/config"
)

// BatchFailure names one failed batch by its 1-based position.
type BatchFailure struct {
	Index int
	Err   error
}

// BatchError reports every failed batch of the group that stopped a run.
type BatchError struct {
	Failures []BatchFailure
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("Batch %d: %v", f.Index, f.Err)
	}
	return fmt.Sprintf("%d batches failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// CreateBatches splits items into consecutive slices of at most size items.
func CreateBatches[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// RunBatches applies fn to each batch, ConcurrentLimit batches at a time.
// Each group settles completely before the next one starts. The first group
// with a failure stops the run; batches already committed stay committed.
func RunBatches[T any](ctx context.Context, items []T, cfg config.BatchConfig, fn func(ctx context.Context, batch []T) error) error {
	batches := CreateBatches(items, cfg.BatchSize)
	limit := max(cfg.ConcurrentLimit, 1)

	for start := 0; start < len(batches); start += limit {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+limit, len(batches))
		errs := make([]error, end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i-start] = runBatch(ctx, batches[i], cfg.BatchTimeout, fn)
			}(i)
		}
		wg.Wait()

		var failures []BatchFailure
		for i, err := range errs {
			if err != nil {
				failures = append(failures, BatchFailure{Index: start + i + 1, Err: err})
			}
		}
		if len(failures) > 0 {
			return &BatchError{Failures: failures}
		}

		if end < len(batches) && cfg.PauseBetweenBatches > 0 {
			select {
			case <-time.After(cfg.PauseBetweenBatches):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func runBatch[T any](ctx context.Context, batch []T, timeout time.Duration, fn func(ctx context.Context, batch []T) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, batch)
}
