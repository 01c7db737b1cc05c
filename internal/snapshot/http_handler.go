package snapshot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/repository"
)

// Handler exposes snapshot capture, listing, and delta endpoints.
type Handler struct {
	aggregator *Aggregator
	calculator *Calculator
	scheduler  *Scheduler
	snaps      repository.SnapshotRepository
}

// NewHTTPHandler builds the snapshot endpoints. The scheduler is optional;
// without one the status endpoint reports an empty map.
func NewHTTPHandler(aggregator *Aggregator, calculator *Calculator, scheduler *Scheduler, snaps repository.SnapshotRepository) *Handler {
	return &Handler{aggregator: aggregator, calculator: calculator, scheduler: scheduler, snaps: snaps}
}

// Register mounts the handler's routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/snapshots", h.capture)
	mux.HandleFunc("GET /api/snapshots/dates", h.listDates)
	mux.HandleFunc("GET /api/snapshots/delta", h.delta)
	mux.HandleFunc("GET /api/snapshots/scheduler", h.schedulerStatus)
}

type captureRequest struct {
	SnapshotType string `json:"snapshot_type"`
	Scope        string `json:"scope"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	AllScopes    bool   `json:"all_scopes"`
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	snapshotType, err := domain.ParseSnapshotType(req.SnapshotType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := CaptureOptions{
		Manual:      true,
		Description: strings.TrimSpace(req.Description),
		Date:        strings.TrimSpace(req.Date),
	}

	if req.AllScopes {
		snapshots, captureErr := h.aggregator.CaptureAll(r.Context(), snapshotType, opts)
		if captureErr != nil {
			http.Error(w, captureErr.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, snapshots)
		return
	}

	scope := strings.TrimSpace(req.Scope)
	if scope == "" {
		scope = domain.ScopeGlobal
	}

	snap, err := h.aggregator.Capture(r.Context(), snapshotType, scope, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) listDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.snaps.ListDates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dates)
}

func (h *Handler) delta(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	scope := strings.TrimSpace(query.Get("scope"))
	if scope == "" {
		scope = domain.ScopeGlobal
	}

	if date := strings.TrimSpace(query.Get("date")); date != "" {
		result, err := h.calculator.DeltaAgainstDate(r.Context(), scope, date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	rawType := strings.TrimSpace(query.Get("type"))
	if rawType == "" {
		rawType = string(domain.SnapshotWeekly)
	}
	snapshotType, err := domain.ParseSnapshotType(rawType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.calculator.Delta(r.Context(), snapshotType, scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) schedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
