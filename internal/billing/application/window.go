package application

import (
	"fmt"
	"time"

	billing "billing-relay/internal/billing/domain"
)

// WindowPolicy selects the window used by the scheduled trigger.
type WindowPolicy string

const (
	// PolicyPreviousMonth covers the previous full calendar month.
	PolicyPreviousMonth WindowPolicy = "previous_month"
	// PolicyTrailing30Days covers the 30 days ending yesterday.
	PolicyTrailing30Days WindowPolicy = "trailing_30_days"
)

const (
	minYear = 2000
	maxYear = 9999
)

// ParseWindowPolicy normalizes a configured policy name.
func ParseWindowPolicy(value string) (WindowPolicy, error) {
	switch WindowPolicy(value) {
	case "", PolicyPreviousMonth:
		return PolicyPreviousMonth, nil
	case PolicyTrailing30Days:
		return PolicyTrailing30Days, nil
	default:
		return "", fmt.Errorf("unknown window policy %q", value)
	}
}

// ValidateMonth checks an explicit {year, month} trigger.
func ValidateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", billing.ErrInvalidMonth, month)
	}
	if year < minYear || year > maxYear {
		return fmt.Errorf("%w: year %d", billing.ErrInvalidMonth, year)
	}
	return nil
}

// MonthWindow returns the window covering one calendar month in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) (billing.TimeWindow, billing.Period, error) {
	if err := ValidateMonth(year, int(month)); err != nil {
		return billing.TimeWindow{}, billing.Period{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	window, err := billing.NewTimeWindow(start, end)
	if err != nil {
		return billing.TimeWindow{}, billing.Period{}, err
	}
	return window, billing.MonthPeriod(year, month), nil
}

// ScheduledWindow derives the window for a parameterless trigger at now.
func ScheduledWindow(policy WindowPolicy, now time.Time, loc *time.Location) (billing.TimeWindow, billing.Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	switch policy {
	case PolicyTrailing30Days:
		start := today.AddDate(0, 0, -30)
		end := today.Add(-time.Second)
		window, err := billing.NewTimeWindow(start, end)
		if err != nil {
			return billing.TimeWindow{}, billing.Period{}, err
		}
		return window, billing.RangePeriod(start, end), nil
	case PolicyPreviousMonth, "":
		prev := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0)
		return MonthWindow(prev.Year(), prev.Month(), loc)
	default:
		return billing.TimeWindow{}, billing.Period{}, fmt.Errorf("unknown window policy %q", policy)
	}
}
