package billing

import "errors"

var (
	// ErrInvalidWindow is returned when a window starts after it ends.
	ErrInvalidWindow = errors.New("billing: invalid time window")
	// ErrInvalidMonth is returned for an out-of-range year/month pair.
	ErrInvalidMonth = errors.New("billing: invalid month")
	// ErrEmptySourceKey is returned when a source has no key.
	ErrEmptySourceKey = errors.New("billing: empty source key")
	// ErrMailerCredentialsMissing is returned when no mail credentials are configured.
	ErrMailerCredentialsMissing = errors.New("billing: mailer credentials missing")
	// ErrNoPages is returned when a merge produced an empty document.
	ErrNoPages = errors.New("billing: document has no pages")
	// ErrRunInProgress is returned when another run holds the lock for a period.
	ErrRunInProgress = errors.New("billing: run already in progress")
)
