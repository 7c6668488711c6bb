package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls atomic.Int64
}

func (f *countingFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls.Add(1)
	return []byte("%PDF"), nil
}

func TestLimitedFetcherQueuesInsteadOfFailing(t *testing.T) {
	next := &countingFetcher{}
	fetcher, err := NewLimitedFetcher(next, 50, 1)
	require.NoError(t, err)

	const requests = 10
	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fetcher.Fetch(context.Background(), "https://files.example.com/doc.pdf")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(requests), next.calls.Load())
	// 10 requests at 50/s with burst 1 need at least ~180ms.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLimitedFetcherHonoursCancellation(t *testing.T) {
	next := &countingFetcher{}
	fetcher, err := NewLimitedFetcher(next, 1, 1)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), "u")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.Fetch(ctx, "u")
	require.Error(t, err)
	assert.Equal(t, int64(1), next.calls.Load())
}

func TestNewLimitedFetcherNil(t *testing.T) {
	_, err := NewLimitedFetcher(nil, 80, 1)
	require.Error(t, err)
}
