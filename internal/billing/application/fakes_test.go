package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	billing "billing-relay/internal/billing/domain"
)

func strptr(s string) *string { return &s }

func record(id, status string, url *string) billing.Record {
	return billing.Record{ID: id, Number: "N-" + id, Status: status, DocumentURL: url, Currency: "usd"}
}

// fakeSource serves pre-built pages per credential.
type fakeSource struct {
	mu       sync.Mutex
	pages    map[string][]Page
	errs     map[string]error
	requests []PageRequest
	calls    int
}

func (s *fakeSource) ListPage(_ context.Context, credential string, req PageRequest) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.requests = append(s.requests, req)
	if err := s.errs[credential]; err != nil {
		return Page{}, err
	}
	pages := s.pages[credential]
	if req.StartingAfter == "" {
		if len(pages) == 0 {
			return Page{}, nil
		}
		return pages[0], nil
	}
	for i, page := range pages {
		if page.LastID() == req.StartingAfter && i+1 < len(pages) {
			return pages[i+1], nil
		}
	}
	return Page{}, nil
}

// fakeFetcher returns fixed bodies per url; unknown urls fail.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeFetcher(bodies map[string][]byte) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("http 500 for %s", url)
	}
	return body, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

const placeholderBody = "PLACEHOLDER"

// fakeMerger joins buffers with '|' so tests can inspect composite content.
type fakeMerger struct {
	mergeErr       error
	placeholderErr error
	merges         int
}

func (m *fakeMerger) Merge(buffers [][]byte) ([]byte, error) {
	m.merges++
	if m.mergeErr != nil {
		return nil, m.mergeErr
	}
	if len(buffers) == 0 {
		return nil, billing.ErrNoPages
	}
	return bytes.Join(buffers, []byte("|")), nil
}

func (m *fakeMerger) Placeholder() ([]byte, error) {
	if m.placeholderErr != nil {
		return nil, m.placeholderErr
	}
	return []byte(placeholderBody), nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	readyErr error
	failTo   map[string]error
	sent     []Message
	attempts []string
}

func (d *fakeDispatcher) Ready() error { return d.readyErr }

func (d *fakeDispatcher) Send(_ context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = append(d.attempts, msg.To)
	if err := d.failTo[msg.To]; err != nil {
		return err
	}
	d.sent = append(d.sent, msg)
	return nil
}

type fakeSummary struct{ err error }

func (s fakeSummary) RenderGroup(group billing.DestinationGroup, _ billing.Period) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(fmt.Sprintf("xlsx:%d", len(group.Documents))), nil
}

type fakeObserver struct {
	mu           sync.Mutex
	placeholders int
	composites   int
	dispatchOK   int
	dispatchFail int
	runs         []bool
}

func (o *fakeObserver) ObserveComposite(placeholder bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.composites++
	if placeholder {
		o.placeholders++
	}
}

func (o *fakeObserver) ObserveDispatch(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.dispatchOK++
	} else {
		o.dispatchFail++
	}
}

func (o *fakeObserver) ObserveRun(success bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, success)
}

type fakeLock struct {
	held     map[string]bool
	err      error
	released []string
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, billing.ErrRunInProgress
	}
	return func() { l.released = append(l.released, key) }, nil
}

var errSendFailed = errors.New("smtp: 554 rejected")
