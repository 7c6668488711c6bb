package billing

import (
	"fmt"
	"time"
)

// TimeWindow is a closed interval [Start, End] in epoch seconds.
type TimeWindow struct {
	Start int64
	End   int64
}

// NewTimeWindow builds a validated window from two instants.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start.Unix(), End: end.Unix()}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate checks Start <= End.
func (w TimeWindow) Validate() error {
	if w.Start > w.End {
		return fmt.Errorf("%w: start %d after end %d", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

// Contains reports whether ts falls inside the window, both ends inclusive.
func (w TimeWindow) Contains(ts int64) bool {
	return ts >= w.Start && ts <= w.End
}

// StartTime returns the window start in UTC.
func (w TimeWindow) StartTime() time.Time { return time.Unix(w.Start, 0).UTC() }

// EndTime returns the window end in UTC.
func (w TimeWindow) EndTime() time.Time { return time.Unix(w.End, 0).UTC() }

// PeriodKind identifies how a period descriptor was derived.
type PeriodKind string

const (
	PeriodMonthYear PeriodKind = "month_year"
	PeriodDateRange PeriodKind = "date_range"
)

// Period describes the run window for filenames and subjects.
type Period struct {
	Kind  PeriodKind
	Label string
	Year  int
	Month time.Month
}

// MonthPeriod returns a {MonthName}-{Year} descriptor.
func MonthPeriod(year int, month time.Month) Period {
	return Period{
		Kind:  PeriodMonthYear,
		Label: fmt.Sprintf("%s-%d", month.String(), year),
		Year:  year,
		Month: month,
	}
}

// RangePeriod returns a {start}_to_{end} descriptor using ISO dates.
func RangePeriod(start, end time.Time) Period {
	return Period{
		Kind:  PeriodDateRange,
		Label: start.Format("2006-01-02") + "_to_" + end.Format("2006-01-02"),
	}
}

// Title renders the period for human-facing text.
func (p Period) Title() string {
	if p.Kind == PeriodMonthYear {
		return fmt.Sprintf("%s %d", p.Month.String(), p.Year)
	}
	return p.Label
}
