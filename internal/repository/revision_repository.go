package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salestrack/oppsmon/internal/domain"
)

type revisionRepository struct {
	pool *pgxpool.Pool
}

// NewRevisionRepository wires a repository backed by pgxpool.
func NewRevisionRepository(pool *pgxpool.Pool) RevisionRepository {
	return &revisionRepository{pool: pool}
}

func (r *revisionRepository) ListByOpportunity(ctx context.Context, uid uuid.UUID) ([]domain.Revision, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("revision repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, opportunity_uid, revision_number, changed_by, changed_at, changed_fields
		 FROM opportunity_revisions
		 WHERE opportunity_uid = $1
		 ORDER BY revision_number`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	revisions := []domain.Revision{}
	for rows.Next() {
		var (
			rev           domain.Revision
			changedBy     pgtype.Text
			changedAt     pgtype.Timestamptz
			changedFields []byte
		)
		if scanErr := rows.Scan(
			&rev.ID,
			&rev.OpportunityUID,
			&rev.RevisionNumber,
			&changedBy,
			&changedAt,
			&changedFields,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", scanErr)
		}

		rev.ChangedBy = changedBy.String
		if changedAt.Valid {
			rev.ChangedAt = changedAt.Time
		}
		if err := json.Unmarshal(changedFields, &rev.ChangedFields); err != nil {
			return nil, fmt.Errorf("failed to decode change set for revision %d: %w", rev.RevisionNumber, err)
		}

		revisions = append(revisions, rev)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate revisions: %w", rowsErr)
	}

	return revisions, nil
}

func (r *revisionRepository) LatestNumber(ctx context.Context, uid uuid.UUID) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("revision repository not initialized")
	}

	var latest int
	if err := r.pool.QueryRow(
		ctx,
		`SELECT COALESCE(MAX(revision_number), 0) FROM opportunity_revisions WHERE opportunity_uid = $1`,
		uid,
	).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to get latest revision number: %w", err)
	}

	return latest, nil
}
