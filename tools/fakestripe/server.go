package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"
)

var statuses = []string{"paid", "open", "paid", "void", "uncollectible", "paid", "draft"}

type invoice struct {
	ID         string  `json:"id"`
	Object     string  `json:"object"`
	Number     string  `json:"number"`
	Status     string  `json:"status"`
	AmountPaid int64   `json:"amount_paid"`
	AmountDue  int64   `json:"amount_due"`
	Currency   string  `json:"currency"`
	Created    int64   `json:"created"`
	InvoicePDF *string `json:"invoice_pdf"`
}

type fakeServer struct {
	publicURL  string
	perAccount int
	now        time.Time
	failRate   float64
	latency    time.Duration

	mu       sync.Mutex
	accounts map[string][]invoice
	rng      *rand.Rand
	calls    map[string]int
}

func newFakeServer(publicURL string, perAccount int, now time.Time) *fakeServer {
	return &fakeServer{
		publicURL:  strings.TrimRight(publicURL, "/"),
		perAccount: perAccount,
		now:        now,
		accounts:   make(map[string][]invoice),
		rng:        rand.New(rand.NewSource(now.UnixNano())),
		calls:      make(map[string]int),
	}
}

func (s *fakeServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/invoices", s.handleList)
	mux.HandleFunc("/files/", s.handleFile)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// invoicesFor lazily builds a stable dataset for one API key, newest first.
func (s *fakeServer) invoicesFor(key string) []invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list, ok := s.accounts[key]; ok {
		return list
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	prefix := fmt.Sprintf("%08x", h.Sum32())

	list := make([]invoice, 0, s.perAccount)
	for i := 0; i < s.perAccount; i++ {
		id := fmt.Sprintf("in_%s_%04d", prefix, i)
		status := statuses[i%len(statuses)]
		amount := int64(1000 + 250*i)
		inv := invoice{
			ID:        id,
			Object:    "invoice",
			Number:    fmt.Sprintf("%s-%04d", strings.ToUpper(prefix[:4]), i+1),
			Status:    status,
			AmountDue: amount,
			Currency:  "usd",
			Created:   s.now.Add(-time.Duration(i) * 36 * time.Hour).Unix(),
		}
		if status == "paid" {
			inv.AmountPaid = amount
		}
		if status != "draft" {
			url := s.publicURL + "/files/" + id + ".pdf"
			inv.InvoicePDF = &url
		}
		list = append(list, inv)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Created > list[j].Created })
	s.accounts[key] = list
	return list
}

func (s *fakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	key := bearer(r)
	if key == "" {
		writeError(w, http.StatusUnauthorized, "You did not provide an API key.")
		return
	}
	s.countCall("list")
	s.sleep()

	q := r.URL.Query()
	limit := parseIntDefault(q.Get("limit"), 10)
	if limit < 1 || limit > 100 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	gte := parseInt64Default(q.Get("created[gte]"), 0)
	lte := parseInt64Default(q.Get("created[lte]"), 1<<62)
	after := q.Get("starting_after")

	var matched []invoice
	for _, inv := range s.invoicesFor(key) {
		if inv.Created >= gte && inv.Created <= lte {
			matched = append(matched, inv)
		}
	}
	start := 0
	if after != "" {
		start = -1
		for i, inv := range matched {
			if inv.ID == after {
				start = i + 1
				break
			}
		}
		if start < 0 {
			writeError(w, http.StatusBadRequest, "No such invoice: '"+after+"'")
			return
		}
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]
	if page == nil {
		page = []invoice{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object":   "list",
		"url":      "/v1/invoices",
		"data":     page,
		"has_more": end < len(matched),
	})
}

func (s *fakeServer) handleFile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), ".pdf")
	if id == "" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.countCall("file")
	s.sleep()
	if s.shouldFail() {
		s.countCall("file_failed")
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
		return
	}
	doc, err := renderInvoice(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(doc)
}

func (s *fakeServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"started_at": s.now.Format(time.RFC3339),
		"calls":      s.calls,
		"accounts":   len(s.accounts),
	})
}

func (s *fakeServer) countCall(kind string) {
	s.mu.Lock()
	s.calls[kind]++
	s.mu.Unlock()
}

func (s *fakeServer) shouldFail() bool {
	if s.failRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failRate
}

func (s *fakeServer) sleep() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func renderInvoice(id string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 16)
	pdf.AddPage()
	pdf.Cell(0, 10, "Invoice "+id)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bearer(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"type": "invalid_request_error", "message": message},
	})
}

func parseIntDefault(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64Default(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
