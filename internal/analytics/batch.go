package analytics

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultBatchSize  = 20
	DefaultBatchPause = 100 * time.Millisecond
)

// BatchConfig bounds the concurrency of per-item upstream fetches and paces
// consecutive bursts. The upstream rate limits are undocumented, so bursts
// are capped and separated by a fixed pause instead of serialising the
// whole roster.
type BatchConfig struct {
	Size  int
	Pause time.Duration
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.Size <= 0 {
		c.Size = DefaultBatchSize
	}
	// Zero means unset, like Size. A negative pause disables pacing.
	if c.Pause == 0 {
		c.Pause = DefaultBatchPause
	}
	return c
}

// Result carries the per-item outcome of a batched fetch. When Err is set,
// Value holds the caller-provided fallback so downstream aggregation always
// sees one entry per input item.
type Result[R any] struct {
	Value R
	Err   error
}

// Failed reports whether this item degraded to its fallback value.
func (r Result[R]) Failed() bool {
	return r.Err != nil
}

// RunBatches executes fetch for every item with at most cfg.Size in flight,
// waiting for each batch to fully settle before dispatching the next and
// sleeping cfg.Pause between batches (never before the first). Output order
// matches input order. A per-item failure never aborts the batch: fallback
// supplies the degraded value.
func RunBatches[T, R any](ctx context.Context, cfg BatchConfig, items []T, fetch func(context.Context, T) (R, error), fallback func(T, error) R) []Result[R] {
	cfg = cfg.withDefaults()
	results := make([]Result[R], len(items))

	for start := 0; start < len(items); start += cfg.Size {
		if start > 0 && cfg.Pause > 0 {
			if !sleepCtx(ctx, cfg.Pause) {
				for i := start; i < len(items); i++ {
					results[i] = Result[R]{Value: fallback(items[i], ctx.Err()), Err: ctx.Err()}
				}
				return results
			}
		}

		end := start + cfg.Size
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				value, err := fetch(ctx, items[idx])
				if err != nil {
					results[idx] = Result[R]{Value: fallback(items[idx], err), Err: err}
					return
				}
				results[idx] = Result[R]{Value: value}
			}(i)
		}
		wg.Wait()
	}

	return results
}

// sleepCtx pauses for d, returning false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
