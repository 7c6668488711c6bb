package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier posts run summaries to a chat webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends a run summary to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, summary RunSummary) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatRunSummary(summary)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: http %d", resp.StatusCode)
	}
	return nil
}

func formatRunSummary(summary RunSummary) string {
	var b strings.Builder
	b.WriteString("[Billing Relay]\n")
	if summary.Period != "" {
		fmt.Fprintf(&b, "Period: %s\n", summary.Period)
	}
	if summary.Trigger != "" {
		fmt.Fprintf(&b, "Trigger: %s\n", summary.Trigger)
	}
	status := "ok"
	if !summary.Success {
		status = "failed"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	if summary.Message != "" {
		fmt.Fprintf(&b, "Result: %s\n", summary.Message)
	}
	for _, group := range summary.Groups {
		if group.Sent {
			fmt.Fprintf(&b, "Sent: %s (%d attachments)\n", group.Destination, group.Attachments)
			continue
		}
		fmt.Fprintf(&b, "Failed: %s: %s\n", group.Destination, group.Error)
	}
	if summary.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", summary.RunID)
	}
	return strings.TrimSpace(b.String())
}
