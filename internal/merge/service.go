// Package merge is the single write path for opportunities. Every create
// and update flows through it, so identity resolution, diffing, and
// revision recording happen exactly once and always together.
package merge

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/identity"
	"github.com/salestrack/oppsmon/internal/repository"
)

// Service merges candidate records into the opportunity store.
type Service struct {
	opps repository.OpportunityRepository
	logs repository.ImportLogRepository
}

// NewService wires the merge engine.
func NewService(opps repository.OpportunityRepository, logs repository.ImportLogRepository) *Service {
	return &Service{opps: opps, logs: logs}
}

// Result reports what one merge did.
type Result struct {
	UID            uuid.UUID          `json:"uid"`
	Created        bool               `json:"created"`
	Unchanged      bool               `json:"unchanged"`
	RevisionNumber int                `json:"revision_number,omitempty"`
	ChangedFields  []string           `json:"changed_fields,omitempty"`
	Opportunity    domain.Opportunity `json:"opportunity"`
}

// Row is one parsed record within a batch, tagged with its source row
// number for error reporting.
type Row struct {
	Number    int
	Candidate domain.Candidate
}

// BatchRequest is one import job: a file's worth of rows merged under a
// single identity index.
type BatchRequest struct {
	SourceFile string
	ChangedBy  string
	Rows       []Row
}

// RowError describes one skipped row.
type RowError struct {
	Row         int    `json:"row"`
	ProjectName string `json:"project_name,omitempty"`
	Message     string `json:"message"`
}

// Summary aggregates the outcome of a batch. Row failures never abort the
// batch; they land here and in the import log.
type Summary struct {
	JobID     uuid.UUID  `json:"job_id"`
	TotalRows int        `json:"total_rows"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Skipped   int        `json:"skipped"`
	Errors    []RowError `json:"errors,omitempty"`
}

// Apply merges one candidate against the given identity index: resolve,
// then create or update. New records are registered back into the index so
// later candidates in the same batch resolve to them.
func (s *Service) Apply(ctx context.Context, ix *identity.Index, c domain.Candidate, changedBy string) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	uid, err := ix.Resolve(c)
	if err != nil {
		if err == identity.ErrNotFound {
			return s.create(ctx, ix, c, changedBy)
		}
		return Result{}, err
	}

	return s.update(ctx, uid, c, changedBy)
}

func (s *Service) create(ctx context.Context, ix *identity.Index, c domain.Candidate, changedBy string) (Result, error) {
	opp := domain.NewOpportunity(c, changedBy)

	stored, err := s.opps.Insert(ctx, opp, domain.InitialChangeSet(c))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create opportunity: %w", err)
	}

	if ix != nil {
		ix.Add(identity.Key{UID: stored.UID, ProjectName: stored.ProjectName, ProjectCode: stored.ProjectCode})
	}

	return Result{
		UID:            stored.UID,
		Created:        true,
		RevisionNumber: 1,
		Opportunity:    stored,
	}, nil
}

func (s *Service) update(ctx context.Context, uid uuid.UUID, c domain.Candidate, changedBy string) (Result, error) {
	existing, err := s.opps.GetByUID(ctx, uid)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load opportunity %s: %w", uid, err)
	}

	changes := domain.Diff(existing.AsCandidate(), c)
	if changes.Empty() {
		// Idempotent re-import: no write, no revision.
		return Result{UID: uid, Unchanged: true, Opportunity: existing}, nil
	}

	existing.ApplyCandidate(c)
	existing.LastModifiedBy = changedBy

	revision, err := s.opps.Update(ctx, existing, changes, changedBy)
	if err != nil {
		return Result{}, fmt.Errorf("failed to update opportunity %s: %w", uid, err)
	}

	updated, err := s.opps.GetByUID(ctx, uid)
	if err != nil {
		return Result{}, fmt.Errorf("failed to reload opportunity %s: %w", uid, err)
	}

	return Result{
		UID:            uid,
		RevisionNumber: revision.RevisionNumber,
		ChangedFields:  changes.Fields(),
		Opportunity:    updated,
	}, nil
}

// Update merges a candidate into a known opportunity, bypassing identity
// resolution. This is the manual-edit path where the caller already holds
// the uid.
func (s *Service) Update(ctx context.Context, uid uuid.UUID, c domain.Candidate, changedBy string) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	return s.update(ctx, uid, c, changedBy)
}

// Create inserts a candidate as a new opportunity after checking that its
// identity keys are free. Used by the manual-create path.
func (s *Service) Create(ctx context.Context, c domain.Candidate, changedBy string) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	keys, err := s.opps.IdentityKeys(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load identity index: %w", err)
	}
	ix := identity.BuildIndex(keys)

	if uid, resolveErr := ix.Resolve(c); resolveErr == nil {
		return Result{}, fmt.Errorf("opportunity %q already exists as %s", c.ProjectName, uid)
	} else if resolveErr != identity.ErrNotFound {
		return Result{}, resolveErr
	}

	return s.create(ctx, ix, c, changedBy)
}

// ImportBatch merges a parsed file row by row. The identity index is built
// once at batch start; a row that fails validation or resolution is
// skipped, logged, and counted, never aborting the rest of the file.
func (s *Service) ImportBatch(ctx context.Context, req BatchRequest) (Summary, error) {
	keys, err := s.opps.IdentityKeys(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load identity index: %w", err)
	}
	ix := identity.BuildIndex(keys)

	summary := Summary{
		JobID:     uuid.New(),
		TotalRows: len(req.Rows),
	}

	for _, row := range req.Rows {
		result, mergeErr := s.Apply(ctx, ix, row.Candidate, req.ChangedBy)
		if mergeErr != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, RowError{
				Row:         row.Number,
				ProjectName: row.Candidate.ProjectName,
				Message:     mergeErr.Error(),
			})
			s.logRowError(ctx, summary.JobID, req.SourceFile, row, mergeErr)
			continue
		}

		switch {
		case result.Created:
			summary.Created++
		case result.Unchanged:
			summary.Unchanged++
		default:
			summary.Updated++
		}
	}

	log.Printf("[MERGE] batch %s (%s): %d rows, %d created, %d updated, %d unchanged, %d skipped",
		summary.JobID, req.SourceFile, summary.TotalRows, summary.Created, summary.Updated, summary.Unchanged, summary.Skipped)

	return summary, nil
}

func (s *Service) logRowError(ctx context.Context, jobID uuid.UUID, sourceFile string, row Row, cause error) {
	if s.logs == nil {
		return
	}

	rowNumber := row.Number
	entry := domain.ImportLogEntry{
		JobID:        jobID,
		SourceFile:   sourceFile,
		RowNumber:    &rowNumber,
		ProjectName:  row.Candidate.ProjectName,
		ErrorMessage: cause.Error(),
	}
	if err := s.logs.Record(ctx, entry); err != nil {
		log.Printf("[MERGE] failed to record import log for row %d: %v", row.Number, err)
	}
}
