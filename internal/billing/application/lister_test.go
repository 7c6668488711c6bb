package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "billing-relay/internal/billing/domain"
)

var testWindow = billing.TimeWindow{Start: 1714521600, End: 1717199999}

func TestListFollowsCursorAndClassifies(t *testing.T) {
	source := &fakeSource{pages: map[string][]Page{
		"sk_a": {
			{Records: []billing.Record{record("in_1", "paid", nil), record("in_2", "void", nil)}, HasMore: true},
			{Records: []billing.Record{record("in_3", "open", nil), record("in_4", "uncollectible", nil)}, HasMore: true},
			{Records: []billing.Record{record("in_5", "paid", nil)}, HasMore: false},
		},
	}}
	lister, err := NewRecordLister(source, 0)
	require.NoError(t, err)
	src := billing.Source{Key: "A", Credential: "sk_a"}

	primary, other := lister.List(context.Background(), src, testWindow, nil)

	assert.Equal(t, []string{"in_1", "in_3", "in_5"}, ids(primary))
	assert.Equal(t, []string{"in_2", "in_4"}, ids(other))
	require.Len(t, source.requests, 3)
	assert.Equal(t, "", source.requests[0].StartingAfter)
	assert.Equal(t, "in_2", source.requests[1].StartingAfter)
	assert.Equal(t, "in_4", source.requests[2].StartingAfter)
	for _, req := range source.requests {
		assert.Equal(t, DefaultPageSize, req.PageSize)
		assert.Equal(t, testWindow, req.Window)
	}
}

func TestListStopsOnEmptyPage(t *testing.T) {
	source := &fakeSource{pages: map[string][]Page{
		"sk_a": {{Records: nil, HasMore: true}},
	}}
	lister, err := NewRecordLister(source, 10)
	require.NoError(t, err)

	primary, other := lister.List(context.Background(), billing.Source{Key: "A", Credential: "sk_a"}, testWindow, nil)
	assert.Empty(t, primary)
	assert.Empty(t, other)
	assert.Equal(t, 1, source.calls)
}

func TestListErrorYieldsEmptyCategories(t *testing.T) {
	source := &fakeSource{errs: map[string]error{"sk_a": errors.New("401 unauthorized")}}
	lister, err := NewRecordLister(source, 10)
	require.NoError(t, err)
	runLog := NewRunLog(nil, "")

	primary, other := lister.List(context.Background(), billing.Source{Key: "A", Credential: "sk_a"}, testWindow, runLog)

	assert.Nil(t, primary)
	assert.Nil(t, other)
	assert.Contains(t, runLog.Entries()[0], "list A failed on page 1")
}

func TestListErrorMidwayDiscardsEarlierPages(t *testing.T) {
	source := &failingAfterSource{first: Page{Records: []billing.Record{record("in_1", "paid", nil)}, HasMore: true}}
	lister, err := NewRecordLister(source, 10)
	require.NoError(t, err)

	primary, other := lister.List(context.Background(), billing.Source{Key: "A", Credential: "sk"}, testWindow, nil)
	assert.Nil(t, primary)
	assert.Nil(t, other)
	assert.Equal(t, 2, source.calls)
}

func TestListRejectsStalledCursor(t *testing.T) {
	page := Page{Records: []billing.Record{record("in_1", "paid", nil)}, HasMore: true}
	source := &repeatingSource{page: page}
	lister, err := NewRecordLister(source, 10)
	require.NoError(t, err)

	primary, other := lister.List(context.Background(), billing.Source{Key: "A", Credential: "sk"}, testWindow, nil)
	assert.Nil(t, primary)
	assert.Nil(t, other)
	assert.Equal(t, 2, source.calls)
}

func TestNewRecordListerRequiresSource(t *testing.T) {
	_, err := NewRecordLister(nil, 10)
	require.Error(t, err)
}

type failingAfterSource struct {
	first Page
	calls int
}

func (s *failingAfterSource) ListPage(context.Context, string, PageRequest) (Page, error) {
	s.calls++
	if s.calls == 1 {
		return s.first, nil
	}
	return Page{}, errors.New("503 service unavailable")
}

type repeatingSource struct {
	page  Page
	calls int
}

func (s *repeatingSource) ListPage(context.Context, string, PageRequest) (Page, error) {
	s.calls++
	return s.page, nil
}

func ids(records []billing.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ID)
	}
	return out
}
