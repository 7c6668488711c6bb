// Package ratelimit bounds the outbound request rate of document fetches.
package ratelimit

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// DefaultRate is the sustained request budget per second.
const DefaultRate = 80

// Fetcher retrieves one binary resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LimitedFetcher delays requests beyond the configured rate instead of
// rejecting them. One instance is shared by every download of a run.
type LimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewLimitedFetcher wraps next with a limiter of perSecond requests and burst.
func NewLimitedFetcher(next Fetcher, perSecond float64, burst int) (*LimitedFetcher, error) {
	if next == nil {
		return nil, errors.New("ratelimit: nil fetcher")
	}
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}, nil
}

// Fetch waits for a token, then delegates.
func (f *LimitedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.next.Fetch(ctx, url)
}
