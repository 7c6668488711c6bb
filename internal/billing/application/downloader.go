package application

import (
	"context"
	"errors"
)

// Fetcher retrieves one binary resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DownloadObserver receives per-attempt and per-document outcomes.
type DownloadObserver interface {
	ObserveDownloadAttempt(ok bool)
	ObserveDownload(ok bool)
}

// Downloader fetches documents with a bounded retry.
type Downloader struct {
	fetcher  Fetcher
	policy   RetryPolicy[[]byte]
	observer DownloadObserver
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy[[]byte]) DownloaderOption {
	return func(d *Downloader) {
		if policy.MaxAttempts > 0 {
			d.policy = policy
		}
	}
}

// WithDownloadObserver attaches an observer, typically metrics.
func WithDownloadObserver(observer DownloadObserver) DownloaderOption {
	return func(d *Downloader) {
		d.observer = observer
	}
}

// NewDownloader constructs a Downloader.
func NewDownloader(fetcher Fetcher, opts ...DownloaderOption) (*Downloader, error) {
	if fetcher == nil {
		return nil, errors.New("downloader: nil fetcher")
	}
	d := &Downloader{
		fetcher: fetcher,
		policy:  RetryPolicy[[]byte]{MaxAttempts: DefaultMaxAttempts},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Download fetches the document at ref. It returns ok=false when ref is
// absent or every attempt failed; it never returns an error.
func (d *Downloader) Download(ctx context.Context, ref *string, label string, sink LogSink) ([]byte, bool) {
	sink = sinkOrDiscard(sink)
	if ref == nil || *ref == "" {
		appendf(sink, "no document for %s, skipping", label)
		d.observeDocument(false)
		return nil, false
	}
	url := *ref
	limit := d.policy.MaxAttempts
	data, err := d.policy.Run(ctx, func(ctx context.Context, _ int) ([]byte, error) {
		return d.fetcher.Fetch(ctx, url)
	}, func(attempt int, err error) {
		if d.observer != nil {
			d.observer.ObserveDownloadAttempt(err == nil)
		}
		if err != nil {
			appendf(sink, "download %s attempt %d/%d failed: %v", label, attempt, limit, err)
			return
		}
		appendf(sink, "download %s attempt %d/%d ok", label, attempt, limit)
	})
	if err != nil {
		appendf(sink, "download %s unavailable after %d attempts", label, limit)
		d.observeDocument(false)
		return nil, false
	}
	d.observeDocument(true)
	return data, true
}

func (d *Downloader) observeDocument(ok bool) {
	if d.observer != nil {
		d.observer.ObserveDownload(ok)
	}
}
