package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsight/insights-cli/internal/resilience"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func echoCall(ctx context.Context, items []int) ([]string, error) {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = fmt.Sprintf("r%d", n)
	}
	return out, nil
}

func TestExecute_PreservesOrderAndLength(t *testing.T) {
	for _, batchSize := range []int{1, 2, 3, 7, 100} {
		t.Run(fmt.Sprintf("size_%d", batchSize), func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize = batchSize
			cfg.Concurrency = 8

			items := make([]int, 23)
			for i := range items {
				items[i] = i
			}

			ex := New(cfg, func(ctx context.Context, chunk []int) ([]string, error) {
				// Randomize completion order across batches.
				time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
				return echoCall(ctx, chunk)
			})

			res, err := ex.Execute(context.Background(), items)
			require.NoError(t, err)
			require.Len(t, res.Values, len(items))
			for i, v := range res.Values {
				assert.Equal(t, fmt.Sprintf("r%d", i), v)
			}
		})
	}
}

func TestExecute_EmptyInput(t *testing.T) {
	ex := New(testConfig(), echoCall)
	res, err := ex.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Values)
	assert.Empty(t, res.Batches)
}

func TestExecute_TransientRetryRecorded(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 1 // keep batch order deterministic

	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9} // 5 batches of 2

	var mu sync.Mutex
	failed := false
	ex := New(cfg, func(ctx context.Context, chunk []int) ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		// Fail batch 2 (items 2,3) on its first attempt only.
		if chunk[0] == 2 && !failed {
			failed = true
			return nil, resilience.NewTransientError(errors.New("rate limited"), 429)
		}
		return echoCall(ctx, chunk)
	})

	res, err := ex.Execute(context.Background(), items)
	require.NoError(t, err)

	for i, v := range res.Values {
		assert.Equal(t, fmt.Sprintf("r%d", i), v)
	}
	require.Len(t, res.Batches, 5)
	for _, bs := range res.Batches {
		if bs.Offset == 2 {
			assert.Equal(t, 1, bs.Retries, "failing batch should record one retry")
			assert.Equal(t, 2, bs.Attempts)
		} else {
			assert.Zero(t, bs.Retries, "batch %d should not retry", bs.Batch)
		}
	}
}

func TestExecute_PermanentErrorPropagatesBatch(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 3
	cfg.Concurrency = 1

	var calls int
	ex := New(cfg, func(ctx context.Context, chunk []int) ([]string, error) {
		calls++
		if chunk[0] == 3 {
			return nil, resilience.NewPermanentError(errors.New("invalid api key"), 401)
		}
		return echoCall(ctx, chunk)
	})

	items := []int{0, 1, 2, 3, 4, 5, 6}
	_, err := ex.Execute(context.Background(), items)
	require.Error(t, err)
	require.True(t, resilience.IsPermanent(err))

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Batch)
	assert.Equal(t, 3, ce.Offset)
	assert.Equal(t, 3, ce.Size)
	assert.Equal(t, 2, calls, "permanent failure must not be retried")
}

func TestExecute_ResultCountMismatchIsPermanent(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 4

	ex := New(cfg, func(ctx context.Context, chunk []int) ([]string, error) {
		// Protocol violation: one result short.
		out, _ := echoCall(ctx, chunk)
		return out[:len(out)-1], nil
	})

	_, err := ex.Execute(context.Background(), []int{1, 2, 3})
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Contains(t, err.Error(), "got 2 results for 3 items")
}

func TestExecute_PayloadSplitting(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	cfg.MaxPayloadBytes = 10
	cfg.Concurrency = 1

	var batchSizes []int
	ex := New(cfg, func(ctx context.Context, chunk []string) ([]string, error) {
		batchSizes = append(batchSizes, len(chunk))
		return chunk, nil
	})
	ex.SizeOf = func(s string) int { return len(s) }

	// 4+4+4 bytes: must split after the second item.
	items := []string{"aaaa", "bbbb", "cccc", "dd"}
	res, err := ex.Execute(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, items, res.Values)
	assert.Equal(t, []int{2, 2}, batchSizes)
}

func TestExecute_OversizedItemFailsBeforeAnyCall(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPayloadBytes = 5

	var calls int
	ex := New(cfg, func(ctx context.Context, chunk []string) ([]string, error) {
		calls++
		return chunk, nil
	})
	ex.SizeOf = func(s string) int { return len(s) }

	_, err := ex.Execute(context.Background(), []string{"ok", strings.Repeat("x", 6)})
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Zero(t, calls)
}

func TestExecute_CancellationStopsDispatch(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.Concurrency = 1

	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	ex := New(cfg, func(_ context.Context, chunk []int) ([]string, error) {
		calls++
		if calls == 2 {
			cancel()
			return nil, ctx.Err()
		}
		return echoCall(context.Background(), chunk)
	})

	_, err := ex.Execute(ctx, []int{1, 2, 3, 4, 5, 6, 7, 8})
	require.Error(t, err)
	assert.Less(t, calls, 8, "cancellation should stop dispatching new batches")
}

func TestExecute_BreakerFailsFastWhenOpen(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})

	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.Concurrency = 1
	cfg.Retry.MaxAttempts = 1
	cfg.Breaker = breaker

	var calls int
	ex := New(cfg, func(ctx context.Context, chunk []int) ([]string, error) {
		calls++
		return nil, resilience.NewTransientError(errors.New("down"), 503)
	})

	// First run trips the breaker.
	_, err := ex.Execute(context.Background(), []int{1})
	require.Error(t, err)
	require.Equal(t, 1, calls)

	// Second run is rejected without reaching the service.
	_, err = ex.Execute(context.Background(), []int{2})
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 1, calls, "open circuit must reject the call without dispatching")
}
