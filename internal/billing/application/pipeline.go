package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	billing "billing-relay/internal/billing/domain"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultWorkers       = 4
	defaultSubjectPrefix = "Invoices"
)

// RunResult is the structured outcome of one run.
type RunResult struct {
	RunID   string        `json:"run_id"`
	Success bool          `json:"success"`
	Logs    []string      `json:"logs"`
	Period  string        `json:"period,omitempty"`
	Month   int           `json:"month,omitempty"`
	Year    int           `json:"year,omitempty"`
	Message string        `json:"message,omitempty"`
	Groups  []GroupReport `json:"groups,omitempty"`
}

// GroupReport describes one dispatch attempt.
type GroupReport struct {
	Destination string   `json:"destination"`
	Attachments []string `json:"attachments"`
	Sent        bool     `json:"sent"`
	Error       string   `json:"error,omitempty"`
}

// PipelineConfig holds the static settings of a pipeline.
type PipelineConfig struct {
	From          string
	SubjectPrefix string
	Workers       int
}

// Pipeline drives listing, download, merge and dispatch for every source.
type Pipeline struct {
	sources    []billing.Source
	lister     *RecordLister
	downloader *Downloader
	merger     DocumentMerger
	dispatcher Dispatcher
	summary    SummaryRenderer
	observer   RunObserver
	logger     *log.Logger
	cfg        PipelineConfig
	newRunID   func() string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSummaryRenderer attaches a spreadsheet summary to each dispatched group.
func WithSummaryRenderer(renderer SummaryRenderer) PipelineOption {
	return func(p *Pipeline) {
		p.summary = renderer
	}
}

// WithRunObserver attaches a run observer, typically metrics.
func WithRunObserver(observer RunObserver) PipelineOption {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// WithLogger mirrors run events to logger.
func WithLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRunIDFunc overrides run id generation.
func WithRunIDFunc(fn func() string) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.newRunID = fn
		}
	}
}

// NewPipeline constructs a Pipeline.
func NewPipeline(sources []billing.Source, lister *RecordLister, downloader *Downloader, merger DocumentMerger, dispatcher Dispatcher, cfg PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	if lister == nil {
		return nil, errors.New("pipeline: nil lister")
	}
	if downloader == nil {
		return nil, errors.New("pipeline: nil downloader")
	}
	if merger == nil {
		return nil, errors.New("pipeline: nil merger")
	}
	if dispatcher == nil {
		return nil, errors.New("pipeline: nil dispatcher")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}
	p := &Pipeline{
		sources:    append([]billing.Source(nil), sources...),
		lister:     lister,
		downloader: downloader,
		merger:     merger,
		dispatcher: dispatcher,
		cfg:        cfg,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Sources returns the configured sources.
func (p *Pipeline) Sources() []billing.Source {
	return append([]billing.Source(nil), p.sources...)
}

// Run processes every source and category for window and dispatches the
// resulting bundles. Only an invalid window is returned as an error; every
// other failure is logged into the result.
func (p *Pipeline) Run(ctx context.Context, window billing.TimeWindow, period billing.Period) (*RunResult, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	runID := p.newRunID()
	runLog := NewRunLog(p.logger, runID)
	result := &RunResult{RunID: runID, Period: period.Label}
	if period.Kind == billing.PeriodMonthYear {
		result.Month = int(period.Month)
		result.Year = period.Year
	}

	runLog.Appendf("run started for %s (%s to %s)", period.Label,
		window.StartTime().Format(time.RFC3339), window.EndTime().Format(time.RFC3339))

	if err := p.dispatcher.Ready(); err != nil {
		runLog.Appendf("mailer credentials missing, aborting run: %v", err)
		result.Success = false
		result.Message = "mailer credentials missing"
		result.Logs = runLog.Entries()
		p.observeRun(false, time.Since(started))
		return result, nil
	}

	router := NewRouter(RoutesFromSources(p.sources))
	for _, src := range p.sources {
		if !src.HasCredential() {
			runLog.Appendf("skip %s: credential missing", src.Key)
			continue
		}
		if _, ok := router.Destination(src.Key); !ok {
			runLog.Appendf("skip %s: no destination configured", src.Key)
			continue
		}
		runLog.Appendf("processing %s", src.Key)
		primary, other := p.lister.List(ctx, src, window, runLog)
		for _, category := range billing.Categories {
			records := primary
			if category == billing.CategoryOther {
				records = other
			}
			doc, ok := p.buildComposite(ctx, src, category, records, period, runLog)
			if !ok {
				continue
			}
			router.Add(doc)
		}
	}

	groups := router.Groups()
	if len(groups) == 0 {
		runLog.Append("no documents to dispatch")
	}
	sent := 0
	for _, group := range groups {
		report := p.dispatch(ctx, group, period, runLog)
		if report.Sent {
			sent++
		}
		result.Groups = append(result.Groups, report)
	}

	result.Success = true
	result.Message = fmt.Sprintf("dispatched %d of %d groups", sent, len(groups))
	runLog.Appendf("run finished: %s", result.Message)
	result.Logs = runLog.Entries()
	p.observeRun(true, time.Since(started))
	return result, nil
}

func (p *Pipeline) buildComposite(ctx context.Context, src billing.Source, category billing.Category, records []billing.Record, period billing.Period, sink LogSink) (billing.CompositeDocument, bool) {
	doc := billing.CompositeDocument{
		SourceKey: src.Key,
		Category:  category,
		Filename:  billing.Filename(src.Key, category, period),
		Records:   records,
	}
	if len(records) == 0 {
		appendf(sink, "%s %s: no records, using placeholder", src.Key, category)
		return p.withPlaceholder(doc, sink)
	}

	buffers := p.downloadAll(ctx, src, records, sink)
	if len(buffers) == 0 {
		appendf(sink, "%s %s: no documents downloaded, using placeholder", src.Key, category)
		return p.withPlaceholder(doc, sink)
	}

	merged, err := p.merger.Merge(buffers)
	if err != nil {
		appendf(sink, "%s %s: merge failed, using placeholder: %v", src.Key, category, err)
		return p.withPlaceholder(doc, sink)
	}
	doc.Content = merged
	appendf(sink, "%s %s: merged %d of %d documents into %s", src.Key, category, len(buffers), len(records), doc.Filename)
	p.observeComposite(false)
	return doc, true
}

func (p *Pipeline) withPlaceholder(doc billing.CompositeDocument, sink LogSink) (billing.CompositeDocument, bool) {
	content, err := p.merger.Placeholder()
	if err != nil {
		appendf(sink, "%s %s: placeholder failed, skipping: %v", doc.SourceKey, doc.Category, err)
		return doc, false
	}
	doc.Content = content
	doc.Placeholder = true
	p.observeComposite(true)
	return doc, true
}

// downloadAll fetches every record's document under the worker bound and
// returns the successful buffers in listing order.
func (p *Pipeline) downloadAll(ctx context.Context, src billing.Source, records []billing.Record, sink LogSink) [][]byte {
	results := make([][]byte, len(records))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, rec := range records {
		g.Go(func() error {
			data, ok := p.downloader.Download(ctx, rec.DocumentURL, src.Key+"/"+rec.Label(), sink)
			if ok {
				results[i] = data
			}
			return nil
		})
	}
	_ = g.Wait()

	buffers := make([][]byte, 0, len(results))
	for _, data := range results {
		if data != nil {
			buffers = append(buffers, data)
		}
	}
	return buffers
}

func (p *Pipeline) dispatch(ctx context.Context, group billing.DestinationGroup, period billing.Period, sink LogSink) GroupReport {
	report := GroupReport{Destination: group.Destination}
	attachments := make([]Attachment, 0, len(group.Documents)+1)
	for _, doc := range group.Documents {
		attachments = append(attachments, Attachment{Filename: doc.Filename, ContentType: contentTypePDF, Content: doc.Content})
	}
	if p.summary != nil {
		data, err := p.summary.RenderGroup(group, period)
		if err != nil {
			appendf(sink, "summary for %s failed: %v", group.Destination, err)
		} else {
			attachments = append(attachments, Attachment{
				Filename:    fmt.Sprintf("summary-%s.xlsx", period.Label),
				ContentType: contentTypeXLSX,
				Content:     data,
			})
		}
	}
	for _, att := range attachments {
		report.Attachments = append(report.Attachments, att.Filename)
	}

	msg := Message{
		From:        p.cfg.From,
		To:          group.Destination,
		Subject:     fmt.Sprintf("%s - %s - %s", p.cfg.SubjectPrefix, strings.Join(group.SourceKeys(), ", "), period.Title()),
		Body:        messageBody(group, period),
		Attachments: attachments,
	}
	if err := p.dispatcher.Send(ctx, msg); err != nil {
		appendf(sink, "dispatch to %s failed: %v", group.Destination, err)
		report.Error = err.Error()
		p.observeDispatch(false)
		return report
	}
	appendf(sink, "dispatched %d attachments to %s", len(attachments), group.Destination)
	report.Sent = true
	p.observeDispatch(true)
	return report
}

func messageBody(group billing.DestinationGroup, period billing.Period) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoices for %s.\n\n", period.Title())
	for _, doc := range group.Documents {
		note := fmt.Sprintf("%d records", len(doc.Records))
		if doc.Placeholder {
			note = "no data"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", doc.Filename, note)
	}
	return strings.TrimSpace(b.String())
}

func (p *Pipeline) observeComposite(placeholder bool) {
	if p.observer != nil {
		p.observer.ObserveComposite(placeholder)
	}
}

func (p *Pipeline) observeDispatch(ok bool) {
	if p.observer != nil {
		p.observer.ObserveDispatch(ok)
	}
}

func (p *Pipeline) observeRun(success bool, d time.Duration) {
	if p.observer != nil {
		p.observer.ObserveRun(success, d)
	}
}
