package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/identity"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// OpportunityRepository owns the opportunities table. Inserts and updates
// append the matching revision in the same transaction so revision
// numbering stays gapless under the per-uid row lock.
type OpportunityRepository interface {
	// Insert creates the opportunity and its revision 1 atomically.
	Insert(ctx context.Context, opp domain.Opportunity, initial domain.ChangeSet) (domain.Opportunity, error)
	// Update locks the stored row, applies the mutable fields, and appends
	// a revision numbered max(existing)+1 carrying the change set.
	Update(ctx context.Context, opp domain.Opportunity, changes domain.ChangeSet, changedBy string) (domain.Revision, error)
	GetByUID(ctx context.Context, uid uuid.UUID) (domain.Opportunity, error)
	// List returns live opportunities in scope: domain.ScopeGlobal for
	// all, otherwise a single account manager.
	List(ctx context.Context, scope string) ([]domain.Opportunity, error)
	// IdentityKeys loads the identity material for index building.
	IdentityKeys(ctx context.Context) ([]identity.Key, error)
	ListAccountManagers(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// RevisionRepository reads the append-only audit trail. There is
// deliberately no update or delete operation.
type RevisionRepository interface {
	ListByOpportunity(ctx context.Context, uid uuid.UUID) ([]domain.Revision, error)
	LatestNumber(ctx context.Context, uid uuid.UUID) (int, error)
}

// SnapshotRepository stores aggregate baselines. Upsert is the only write
// path; the natural-key uniqueness constraint makes it atomic and
// last-writer-wins for recurring types.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error)
	// Latest returns the live baseline for (type, scope), or ErrNotFound.
	Latest(ctx context.Context, snapshotType domain.SnapshotType, scope string) (domain.Snapshot, error)
	GetCustom(ctx context.Context, scope string, snapshotDate string) (domain.Snapshot, error)
	ListDates(ctx context.Context) ([]SnapshotDateInfo, error)
}

// SnapshotDateInfo summarizes one stored baseline for date pickers.
type SnapshotDateInfo struct {
	SnapshotType domain.SnapshotType `json:"snapshot_type"`
	Scope        string              `json:"scope"`
	SnapshotDate string              `json:"snapshot_date"`
	Description  string              `json:"description,omitempty"`
}

// ImportLogRepository stores row-level merge errors for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error)
}
