package notify

import "context"

// GroupSummary describes one dispatched destination group.
type GroupSummary struct {
	Destination string `json:"destination"`
	Attachments int    `json:"attachments"`
	Sent        bool   `json:"sent"`
	Error       string `json:"error,omitempty"`
}

// RunSummary represents a notification payload for one run.
type RunSummary struct {
	RunID   string         `json:"run_id"`
	Trigger string         `json:"trigger"`
	Period  string         `json:"period"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Groups  []GroupSummary `json:"groups,omitempty"`
}

// Notifier sends run notifications.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}
