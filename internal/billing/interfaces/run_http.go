package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"billing-relay/internal/audit"
	"billing-relay/internal/auth"
	"billing-relay/internal/billing/application"
	billing "billing-relay/internal/billing/domain"
)

// RunTrigger starts pipeline runs.
type RunTrigger interface {
	RunMonth(ctx context.Context, year, month int) (*application.RunResult, error)
	RunScheduled(ctx context.Context) (*application.RunResult, error)
}

// RunHandler serves the run trigger endpoints under /api/v1/runs.
type RunHandler struct {
	runs        RunTrigger
	auditLogger audit.Logger
	validate    *validator.Validate
	logger      *log.Logger
}

// NewRunHandler constructs a handler. auditLogger and logger may be nil.
func NewRunHandler(runs RunTrigger, auditLogger audit.Logger, logger *log.Logger) (*RunHandler, error) {
	if runs == nil {
		return nil, errors.New("run handler: nil trigger")
	}
	return &RunHandler{
		runs:        runs,
		auditLogger: auditLogger,
		validate:    validator.New(),
		logger:      logger,
	}, nil
}

type monthRequest struct {
	Year  int `json:"year" validate:"required,min=2000,max=9999"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// ServeHTTP routes /api/v1/runs and /api/v1/runs/scheduled.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/runs":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleMonth(w, r)
	case "/api/v1/runs/scheduled":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleScheduled(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RunHandler) handleMonth(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid month: "+err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.runs.RunMonth(r.Context(), req.Year, req.Month)
	h.logAudit(r, "run.month", result, err, map[string]any{"year": req.Year, "month": req.Month})
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RunHandler) handleScheduled(w http.ResponseWriter, r *http.Request) {
	result, err := h.runs.RunScheduled(r.Context())
	h.logAudit(r, "run.scheduled", result, err, nil)
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RunHandler) respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidMonth), errors.Is(err, billing.ErrInvalidWindow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, billing.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		if h.logger != nil {
			h.logger.Printf("run handler error: %v", err)
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *RunHandler) logAudit(r *http.Request, action string, result *application.RunResult, runErr error, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.Entry{
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    action,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	switch {
	case runErr != nil:
		entry.Outcome = "error"
	case result != nil && result.Success:
		entry.Outcome = "success"
	default:
		entry.Outcome = "failed"
	}
	if result != nil {
		entry.RunID = result.RunID
		entry.Period = result.Period
	}
	if meta != nil {
		entry.Metadata, _ = json.Marshal(meta)
	}
	if err := h.auditLogger.Log(r.Context(), entry); err != nil && h.logger != nil {
		h.logger.Printf("audit log failed: action=%s err=%v", action, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
