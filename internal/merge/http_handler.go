package merge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/identity"
	"github.com/salestrack/oppsmon/internal/importer"
	"github.com/salestrack/oppsmon/internal/repository"
)

// Handler exposes the merge engine over HTTP: manual create and update
// plus file import.
type Handler struct {
	service   *Service
	opps      repository.OpportunityRepository
	revisions repository.RevisionRepository
	logs      repository.ImportLogRepository
}

// NewHTTPHandler builds the opportunity endpoints.
func NewHTTPHandler(service *Service, opps repository.OpportunityRepository, revisions repository.RevisionRepository, logs repository.ImportLogRepository) *Handler {
	return &Handler{service: service, opps: opps, revisions: revisions, logs: logs}
}

// Register mounts the handler's routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/opportunities", h.list)
	mux.HandleFunc("POST /api/opportunities", h.create)
	mux.HandleFunc("GET /api/opportunities/{uid}", h.get)
	mux.HandleFunc("PUT /api/opportunities/{uid}", h.update)
	mux.HandleFunc("GET /api/opportunities/{uid}/revisions", h.revisionHistory)
	mux.HandleFunc("GET /api/account-managers", h.accountManagers)
	mux.HandleFunc("POST /api/import", h.importFile)
	mux.HandleFunc("GET /api/import/{jobID}/errors", h.importErrors)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope := strings.TrimSpace(r.URL.Query().Get("account_mgr"))
	if scope == "" {
		scope = domain.ScopeGlobal
	}

	opps, err := h.opps.List(r.Context(), scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, opps)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid uid: %v", err), http.StatusBadRequest)
		return
	}

	opp, err := h.opps.GetByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "opportunity not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, opp)
}

type writeRequest struct {
	domain.Candidate
	ChangedBy string `json:"changed_by"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.Create(r.Context(), req.Candidate, req.ChangedBy)
	if err != nil {
		writeMergeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid uid: %v", err), http.StatusBadRequest)
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.Update(r.Context(), uid, req.Candidate, req.ChangedBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "opportunity not found", http.StatusNotFound)
			return
		}
		writeMergeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) revisionHistory(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid uid: %v", err), http.StatusBadRequest)
		return
	}

	revisions, err := h.revisions.ListByOpportunity(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, revisions)
}

func (h *Handler) accountManagers(w http.ResponseWriter, r *http.Request) {
	managers, err := h.opps.ListAccountManagers(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, managers)
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	records, err := importer.Parse(header.Filename, bytes.NewReader(data))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := BatchRequest{
		SourceFile: header.Filename,
		ChangedBy:  strings.TrimSpace(r.FormValue("changed_by")),
		Rows:       make([]Row, 0, len(records)),
	}
	for _, record := range records {
		req.Rows = append(req.Rows, Row{Number: record.RowNumber, Candidate: record.Candidate})
	}

	summary, err := h.service.ImportBatch(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) importErrors(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("jobID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job id: %v", err), http.StatusBadRequest)
		return
	}

	logs, err := h.logs.List(r.Context(), jobID, 0, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

// writeMergeError maps domain failures to status codes: validation is the
// caller's fault, an identity collision is a conflict needing human
// resolution.
func writeMergeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, identity.ErrAmbiguousIdentity):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
