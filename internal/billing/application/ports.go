package application

import (
	"context"
	"time"

	billing "billing-relay/internal/billing/domain"
)

// DocumentMerger combines PDF buffers into one composite.
type DocumentMerger interface {
	Merge(buffers [][]byte) ([]byte, error)
	Placeholder() ([]byte, error)
}

// Attachment is one file attached to an outbound message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound message.
type Message struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Dispatcher sends messages with attachments.
type Dispatcher interface {
	// Ready fails with billing.ErrMailerCredentialsMissing when sending is impossible.
	Ready() error
	Send(ctx context.Context, msg Message) error
}

// SummaryRenderer builds an optional spreadsheet attachment for a group.
type SummaryRenderer interface {
	RenderGroup(group billing.DestinationGroup, period billing.Period) ([]byte, error)
}

// RunLock serializes runs for the same period.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RunObserver records run-level outcomes.
type RunObserver interface {
	ObserveComposite(placeholder bool)
	ObserveDispatch(ok bool)
	ObserveRun(success bool, duration time.Duration)
}
