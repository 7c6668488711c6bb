package stripeadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"billing-relay/internal/billing/application"
	billing "billing-relay/internal/billing/domain"
)

// DefaultBaseURL is the public Stripe API endpoint.
const DefaultBaseURL = "https://api.stripe.com"

// Client is a minimal Stripe REST client for invoice listing.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Stripe client.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("stripeadapter: invalid base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// ListPage returns one page of invoices created inside the request window.
func (c *Client) ListPage(ctx context.Context, credential string, req application.PageRequest) (application.Page, error) {
	if credential == "" {
		return application.Page{}, errors.New("stripeadapter: empty credential")
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(req.PageSize))
	query.Set("created[gte]", strconv.FormatInt(req.Window.Start, 10))
	query.Set("created[lte]", strconv.FormatInt(req.Window.End, 10))
	if req.StartingAfter != "" {
		query.Set("starting_after", req.StartingAfter)
	}

	var resp invoiceList
	if err := c.doJSON(ctx, credential, "/v1/invoices?"+query.Encode(), &resp); err != nil {
		return application.Page{}, err
	}
	page := application.Page{HasMore: resp.HasMore}
	for _, item := range resp.Data {
		page.Records = append(page.Records, item.toRecord())
	}
	return page, nil
}

type invoiceList struct {
	Object  string    `json:"object"`
	Data    []invoice `json:"data"`
	HasMore bool      `json:"has_more"`
}

type invoice struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Status     string  `json:"status"`
	AmountPaid int64   `json:"amount_paid"`
	AmountDue  int64   `json:"amount_due"`
	Currency   string  `json:"currency"`
	Created    int64   `json:"created"`
	InvoicePDF *string `json:"invoice_pdf"`
}

func (i invoice) toRecord() billing.Record {
	return billing.Record{
		ID:          i.ID,
		DocumentURL: i.InvoicePDF,
		Number:      i.Number,
		Status:      i.Status,
		AmountPaid:  i.AmountPaid,
		AmountDue:   i.AmountDue,
		Currency:    i.Currency,
		Created:     i.Created,
	}
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, credential, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripeadapter: http %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripeadapter: http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stripeadapter: decode: %w", err)
	}
	return nil
}
