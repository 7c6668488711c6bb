package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "billing-relay/internal/billing/domain"
)

type pipelineFixture struct {
	source     *fakeSource
	fetcher    *fakeFetcher
	merger     *fakeMerger
	dispatcher *fakeDispatcher
	observer   *fakeObserver
	pipeline   *Pipeline
}

func newPipelineFixture(t *testing.T, sources []billing.Source, opts ...PipelineOption) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		source:     &fakeSource{pages: map[string][]Page{}},
		fetcher:    newFakeFetcher(map[string][]byte{}),
		merger:     &fakeMerger{},
		dispatcher: &fakeDispatcher{failTo: map[string]error{}},
		observer:   &fakeObserver{},
	}
	lister, err := NewRecordLister(f.source, 0)
	require.NoError(t, err)
	downloader, err := NewDownloader(f.fetcher)
	require.NoError(t, err)
	opts = append([]PipelineOption{WithRunObserver(f.observer), WithRunIDFunc(func() string { return "run-test" })}, opts...)
	f.pipeline, err = NewPipeline(sources, lister, downloader, f.merger, f.dispatcher,
		PipelineConfig{From: "relay@example.com", Workers: 2}, opts...)
	require.NoError(t, err)
	return f
}

func mayPeriod(t *testing.T) (billing.TimeWindow, billing.Period) {
	t.Helper()
	window, period, err := MonthWindow(2024, time.May, time.UTC)
	require.NoError(t, err)
	return window, period
}

func TestPipelinePartialDownloadFailure(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	f.source.pages["sk_a"] = []Page{{Records: []billing.Record{
		record("in_1", "paid", strptr("https://files/1.pdf")),
		record("in_2", "paid", strptr("https://files/2.pdf")),
		record("in_3", "open", strptr("https://files/3.pdf")),
	}}}
	f.fetcher.bodies["https://files/1.pdf"] = []byte("doc1")
	f.fetcher.bodies["https://files/2.pdf"] = []byte("doc2")

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "run-test", result.RunID)
	assert.Equal(t, 5, result.Month)
	assert.Equal(t, 2024, result.Year)
	assert.Equal(t, 5, f.fetcher.calls["https://files/3.pdf"])

	require.Len(t, f.dispatcher.sent, 1)
	msg := f.dispatcher.sent[0]
	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, "relay@example.com", msg.From)
	assert.Equal(t, "Invoices - A - May 2024", msg.Subject)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "A-Paid-May-2024.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "doc1|doc2", string(msg.Attachments[0].Content))
	assert.Equal(t, "A-Other-May-2024.pdf", msg.Attachments[1].Filename)
	assert.Equal(t, placeholderBody, string(msg.Attachments[1].Content))
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)

	assert.True(t, hasEntry(result.Logs, "download A/N-in_3 unavailable after 5 attempts"))
	assert.Equal(t, 1, f.observer.placeholders)
	assert.Equal(t, 2, f.observer.composites)
	assert.Equal(t, []bool{true}, f.observer.runs)
}

func TestPipelineMailerCredentialsMissing(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	f.dispatcher.readyErr = billing.ErrMailerCredentialsMissing

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "mailer credentials missing", result.Message)
	assert.True(t, hasEntry(result.Logs, "mailer credentials missing"))
	assert.Zero(t, f.source.calls)
	assert.Empty(t, f.dispatcher.attempts)
	assert.Equal(t, []bool{false}, f.observer.runs)
}

func TestPipelineSkipsSourceWithoutCredential(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{
		{Key: "A", Destination: "a@example.com"},
		{Key: "B", Credential: "sk_b", Destination: "b@example.com"},
	})

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.True(t, hasEntry(result.Logs, "skip A: credential missing"))
	assert.Equal(t, 1, f.source.calls)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "b@example.com", f.dispatcher.sent[0].To)
}

func TestPipelineSkipsSourceWithoutDestination(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a"}})

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, hasEntry(result.Logs, "skip A: no destination configured"))
	assert.Zero(t, f.source.calls)
	assert.Empty(t, f.dispatcher.attempts)
}

func TestPipelineFailedSendDoesNotBlockNextGroup(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{
		{Key: "A", Credential: "sk_a", Destination: "a@example.com"},
		{Key: "B", Credential: "sk_b", Destination: "b@example.com"},
	})
	f.dispatcher.failTo["a@example.com"] = errSendFailed

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, f.dispatcher.attempts)
	require.Len(t, result.Groups, 2)
	assert.False(t, result.Groups[0].Sent)
	assert.Equal(t, errSendFailed.Error(), result.Groups[0].Error)
	assert.True(t, result.Groups[1].Sent)
	assert.Equal(t, "dispatched 1 of 2 groups", result.Message)
	assert.True(t, hasEntry(result.Logs, "dispatch to a@example.com failed"))
	assert.Equal(t, 1, f.observer.dispatchFail)
	assert.Equal(t, 1, f.observer.dispatchOK)
}

func TestPipelineZeroRecordsProducesPlaceholders(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})

	window, period := mayPeriod(t)
	_, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	require.Len(t, f.dispatcher.sent, 1)
	attachments := f.dispatcher.sent[0].Attachments
	require.Len(t, attachments, 2)
	for _, att := range attachments {
		assert.Equal(t, placeholderBody, string(att.Content))
	}
	assert.Zero(t, f.merger.merges)
	assert.Zero(t, f.fetcher.total())
}

func TestPipelineMergeFailureFallsBackToPlaceholder(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	f.source.pages["sk_a"] = []Page{{Records: []billing.Record{record("in_1", "paid", strptr("https://files/1.pdf"))}}}
	f.fetcher.bodies["https://files/1.pdf"] = []byte("not a pdf")
	f.merger.mergeErr = errors.New("pdf: malformed xref")

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, placeholderBody, string(f.dispatcher.sent[0].Attachments[0].Content))
	assert.True(t, hasEntry(result.Logs, "A Paid: merge failed, using placeholder"))
}

func TestPipelineAllDownloadsUnavailableUsesPlaceholder(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	f.source.pages["sk_a"] = []Page{{Records: []billing.Record{
		record("in_1", "paid", nil),
		record("in_2", "paid", strptr("https://files/missing.pdf")),
	}}}

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.Zero(t, f.merger.merges)
	assert.Equal(t, placeholderBody, string(f.dispatcher.sent[0].Attachments[0].Content))
	assert.True(t, hasEntry(result.Logs, "no document for A/N-in_1, skipping"))
}

func TestPipelineInvalidWindowMakesNoRemoteCalls(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})

	_, err := f.pipeline.Run(context.Background(), billing.TimeWindow{Start: 200, End: 100}, billing.Period{Label: "bad"})
	require.ErrorIs(t, err, billing.ErrInvalidWindow)
	assert.Zero(t, f.source.calls)
	assert.Empty(t, f.dispatcher.attempts)
}

func TestPipelineSharedDestinationSendsOneMessage(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{
		{Key: "A", Credential: "sk_a", Destination: "shared@example.com"},
		{Key: "B", Credential: "sk_b", Destination: "shared@example.com"},
	}, WithSummaryRenderer(fakeSummary{}))

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	require.Len(t, f.dispatcher.sent, 1)
	msg := f.dispatcher.sent[0]
	assert.Equal(t, "Invoices - A, B - May 2024", msg.Subject)
	require.Len(t, msg.Attachments, 5)
	assert.Equal(t, "summary-May-2024.xlsx", msg.Attachments[4].Filename)
	assert.Equal(t, "xlsx:4", string(msg.Attachments[4].Content))
	assert.Equal(t, []string{
		"A-Paid-May-2024.pdf", "A-Other-May-2024.pdf",
		"B-Paid-May-2024.pdf", "B-Other-May-2024.pdf",
		"summary-May-2024.xlsx",
	}, result.Groups[0].Attachments)
}

func TestPipelineSummaryFailureStillDispatches(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}},
		WithSummaryRenderer(fakeSummary{err: errors.New("excelize: boom")}))

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Len(t, f.dispatcher.sent[0].Attachments, 2)
	assert.True(t, hasEntry(result.Logs, "summary for a@example.com failed"))
}

func TestPipelinePlaceholderFailureSkipsComposite(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	f.merger.placeholderErr = errors.New("gofpdf: font missing")

	window, period := mayPeriod(t)
	result, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, f.dispatcher.attempts)
	assert.True(t, hasEntry(result.Logs, "no documents to dispatch"))
}

func TestPipelineDownloadOrderPreserved(t *testing.T) {
	f := newPipelineFixture(t, []billing.Source{{Key: "A", Credential: "sk_a", Destination: "a@example.com"}})
	var records []billing.Record
	var want []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		url := "https://files/" + id + ".pdf"
		records = append(records, record(id, "paid", strptr(url)))
		f.fetcher.bodies[url] = []byte(id)
		want = append(want, id)
	}
	f.source.pages["sk_a"] = []Page{{Records: records}}

	window, period := mayPeriod(t)
	_, err := f.pipeline.Run(context.Background(), window, period)
	require.NoError(t, err)

	assert.Equal(t, strings.Join(want, "|"), string(f.dispatcher.sent[0].Attachments[0].Content))
}

func TestNewPipelineValidatesCollaborators(t *testing.T) {
	lister, _ := NewRecordLister(&fakeSource{}, 0)
	downloader, _ := NewDownloader(newFakeFetcher(nil))
	_, err := NewPipeline(nil, nil, downloader, &fakeMerger{}, &fakeDispatcher{}, PipelineConfig{})
	assert.Error(t, err)
	_, err = NewPipeline(nil, lister, nil, &fakeMerger{}, &fakeDispatcher{}, PipelineConfig{})
	assert.Error(t, err)
	_, err = NewPipeline(nil, lister, downloader, nil, &fakeDispatcher{}, PipelineConfig{})
	assert.Error(t, err)
	_, err = NewPipeline(nil, lister, downloader, &fakeMerger{}, nil, PipelineConfig{})
	assert.Error(t, err)
}

func hasEntry(entries []string, fragment string) bool {
	for _, e := range entries {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}
