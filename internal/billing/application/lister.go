package application

import (
	"context"
	"errors"

	billing "billing-relay/internal/billing/domain"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 10

// PageRequest describes one page of the remote record listing.
type PageRequest struct {
	PageSize      int
	StartingAfter string
	Window        billing.TimeWindow
}

// Page is one page returned by a RecordSource.
type Page struct {
	Records []billing.Record
	HasMore bool
}

// LastID returns the cursor for the next page.
func (p Page) LastID() string {
	if len(p.Records) == 0 {
		return ""
	}
	return p.Records[len(p.Records)-1].ID
}

// RecordSource lists remote billing records for one credential.
type RecordSource interface {
	ListPage(ctx context.Context, credential string, req PageRequest) (Page, error)
}

// RecordLister pages through a RecordSource and classifies records.
type RecordLister struct {
	source   RecordSource
	pageSize int
}

// NewRecordLister constructs a RecordLister.
func NewRecordLister(source RecordSource, pageSize int) (*RecordLister, error) {
	if source == nil {
		return nil, errors.New("record lister: nil source")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &RecordLister{source: source, pageSize: pageSize}, nil
}

// List returns the source's records in window split by category, in the
// order received. Any listing error yields two empty slices.
func (l *RecordLister) List(ctx context.Context, src billing.Source, window billing.TimeWindow, sink LogSink) (primary, other []billing.Record) {
	sink = sinkOrDiscard(sink)
	cursor := ""
	pages := 0
	for {
		page, err := l.source.ListPage(ctx, src.Credential, PageRequest{
			PageSize:      l.pageSize,
			StartingAfter: cursor,
			Window:        window,
		})
		if err != nil {
			appendf(sink, "list %s failed on page %d: %v", src.Key, pages+1, err)
			return nil, nil
		}
		pages++
		if len(page.Records) == 0 {
			break
		}
		for _, rec := range page.Records {
			if rec.Category() == billing.CategoryPrimary {
				primary = append(primary, rec)
			} else {
				other = append(other, rec)
			}
		}
		if !page.HasMore {
			break
		}
		next := page.LastID()
		if next == "" || next == cursor {
			appendf(sink, "list %s failed on page %d: cursor did not advance", src.Key, pages)
			return nil, nil
		}
		cursor = next
	}
	appendf(sink, "listed %s: %d pages, %d %s, %d %s", src.Key, pages,
		len(primary), billing.CategoryPrimary, len(other), billing.CategoryOther)
	return primary, other
}
