// Package batch groups items into bounded batches for external model calls,
// retries transient failures, and reassembles per-item results in input order.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/appsight/insights-cli/internal/resilience"
)

// Config controls batching, concurrency, and retry behavior.
type Config struct {
	// BatchSize is the maximum number of items per call. Default: 32.
	BatchSize int

	// Concurrency bounds the number of in-flight batches. Default: 4.
	Concurrency int

	// CallTimeout is the per-call deadline. Stages have no overall deadline;
	// each external call enforces its own. Default: 60s.
	CallTimeout time.Duration

	// MaxPayloadBytes bounds the summed item size per batch when the
	// executor has a SizeOf func. Batches are split transparently; a single
	// item over the limit is a permanent error. 0 disables the bound.
	MaxPayloadBytes int

	// Retry controls transient-failure retries per batch.
	Retry resilience.RetryConfig

	// Breaker optionally guards the downstream service. When the circuit is
	// open, dispatching fails fast instead of burning the retry budget.
	Breaker *resilience.CircuitBreaker
}

// DefaultConfig returns executor defaults suitable for model APIs.
func DefaultConfig() Config {
	return Config{
		BatchSize:   32,
		Concurrency: 4,
		CallTimeout: 60 * time.Second,
		Retry:       resilience.DefaultRetryConfig(),
	}
}

// CallFunc submits one batch to the external service and returns one result
// per item, in the same order.
type CallFunc[T, R any] func(ctx context.Context, items []T) ([]R, error)

// CallError reports a failed batch, identifying the offending item range.
type CallError struct {
	Batch  int // batch index, zero-based
	Offset int // index of the batch's first item in the input sequence
	Size   int
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("batch %d (items %d-%d): %v", e.Batch, e.Offset, e.Offset+e.Size-1, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// BatchStats records what happened to one dispatched batch.
type BatchStats struct {
	Batch    int `json:"batch"`
	Offset   int `json:"offset"`
	Size     int `json:"size"`
	Retries  int `json:"retries"`
	Attempts int `json:"attempts"`
}

// Result carries per-item results in input order plus per-batch stats.
type Result[R any] struct {
	Values  []R
	Batches []BatchStats
}

// Executor partitions items, dispatches batches concurrently, and preserves
// input order in the output regardless of network completion order.
type Executor[T, R any] struct {
	cfg  Config
	call CallFunc[T, R]

	// SizeOf estimates the request payload contribution of one item. Only
	// consulted when Config.MaxPayloadBytes > 0.
	SizeOf func(T) int
}

// New creates an executor for the given call with defaults applied.
func New[T, R any](cfg Config, call CallFunc[T, R]) *Executor[T, R] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	return &Executor[T, R]{cfg: cfg, call: call}
}

type span struct {
	offset int
	size   int
}

// partition splits the item sequence into consecutive spans of at most
// BatchSize items, further bounded by MaxPayloadBytes when sizing is enabled.
func (e *Executor[T, R]) partition(items []T) ([]span, error) {
	limit := e.cfg.MaxPayloadBytes
	var spans []span
	start, bytes := 0, 0

	for i := range items {
		sz := 0
		if limit > 0 && e.SizeOf != nil {
			sz = e.SizeOf(items[i])
			if sz > limit {
				return nil, resilience.NewPermanentError(
					eris.Errorf("batch: item %d exceeds max payload (%d > %d bytes)", i, sz, limit), 0)
			}
		}

		full := i-start >= e.cfg.BatchSize
		oversized := limit > 0 && e.SizeOf != nil && i > start && bytes+sz > limit
		if full || oversized {
			spans = append(spans, span{offset: start, size: i - start})
			start, bytes = i, 0
		}
		bytes += sz
	}
	if start < len(items) {
		spans = append(spans, span{offset: start, size: len(items) - start})
	}
	return spans, nil
}

// Execute runs the full sequence through the service. The returned values
// are one per item, in input order. Partial success within a batch (fewer
// results than items) is a protocol violation and fails permanently.
// Cancellation stops dispatching new batches; in-flight batches finish or
// time out on their own deadline.
func (e *Executor[T, R]) Execute(ctx context.Context, items []T) (*Result[R], error) {
	out := &Result[R]{Values: make([]R, len(items))}
	if len(items) == 0 {
		return out, nil
	}

	spans, err := e.partition(items)
	if err != nil {
		return nil, err
	}
	out.Batches = make([]BatchStats, len(spans))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for bi, sp := range spans {
		g.Go(func() error {
			// A failed or cancelled run stops dispatching; in-flight
			// batches are left to finish on their own deadline.
			if err := gCtx.Err(); err != nil {
				return err
			}

			stats := &out.Batches[bi]
			stats.Batch = bi
			stats.Offset = sp.offset
			stats.Size = sp.size

			retryCfg := e.cfg.Retry
			prevOnRetry := retryCfg.OnRetry
			retryCfg.OnRetry = func(attempt int, err error) {
				stats.Retries++
				if prevOnRetry != nil {
					prevOnRetry(attempt, err)
				}
			}

			chunk := items[sp.offset : sp.offset+sp.size]
			results, err := resilience.DoVal(gCtx, retryCfg, func(ctx context.Context) ([]R, error) {
				stats.Attempts++
				callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
				defer cancel()

				if e.cfg.Breaker != nil {
					return resilience.ExecuteVal(callCtx, e.cfg.Breaker, func(ctx context.Context) ([]R, error) {
						return e.call(ctx, chunk)
					})
				}
				return e.call(callCtx, chunk)
			})
			if err != nil {
				return &CallError{Batch: bi, Offset: sp.offset, Size: sp.size, Err: err}
			}

			if len(results) != len(chunk) {
				return &CallError{Batch: bi, Offset: sp.offset, Size: sp.size,
					Err: resilience.NewPermanentError(
						eris.Errorf("batch: got %d results for %d items", len(results), len(chunk)), 0)}
			}

			copy(out.Values[sp.offset:sp.offset+sp.size], results)

			if stats.Retries > 0 {
				zap.L().Debug("batch recovered after retries",
					zap.Int("batch", bi),
					zap.Int("retries", stats.Retries),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
