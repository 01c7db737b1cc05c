package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salestrack/oppsmon/internal/domain"
)

type snapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository wires a repository backed by pgxpool.
func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepository{pool: pool}
}

func (r *snapshotRepository) Upsert(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	if r.pool == nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot repository not initialized")
	}

	buckets, err := snap.Buckets.MarshalJSONB()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to encode buckets: %w", err)
	}

	// Recurring types keep one live row per (type, scope); custom
	// checkpoints accumulate by date. Each path targets its own partial
	// unique index.
	query := `INSERT INTO snapshots (snapshot_type, scope, snapshot_date, saved_date,
			total_opportunities, buckets, is_manual, description)
		 VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7)
		 ON CONFLICT (snapshot_type, scope) WHERE snapshot_type <> 'custom'
		 DO UPDATE SET snapshot_date = EXCLUDED.snapshot_date,
			saved_date = EXCLUDED.saved_date,
			total_opportunities = EXCLUDED.total_opportunities,
			buckets = EXCLUDED.buckets,
			is_manual = EXCLUDED.is_manual,
			description = EXCLUDED.description
		 RETURNING id, saved_date, created_at`
	if !snap.Type.Recurring() {
		query = `INSERT INTO snapshots (snapshot_type, scope, snapshot_date, saved_date,
				total_opportunities, buckets, is_manual, description)
			 VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7)
			 ON CONFLICT (snapshot_type, scope, snapshot_date) WHERE snapshot_type = 'custom'
			 DO UPDATE SET saved_date = EXCLUDED.saved_date,
				total_opportunities = EXCLUDED.total_opportunities,
				buckets = EXCLUDED.buckets,
				is_manual = EXCLUDED.is_manual,
				description = EXCLUDED.description
			 RETURNING id, saved_date, created_at`
	}

	var (
		savedDate pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)
	if err := r.pool.QueryRow(
		ctx,
		query,
		string(snap.Type),
		snap.Scope,
		snap.SnapshotDate,
		snap.TotalOpportunities,
		buckets,
		snap.IsManual,
		nullString(snap.Description),
	).Scan(&snap.ID, &savedDate, &createdAt); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	if savedDate.Valid {
		snap.SavedDate = savedDate.Time
	}
	if createdAt.Valid {
		snap.CreatedAt = createdAt.Time
	}

	return snap, nil
}

func (r *snapshotRepository) Latest(ctx context.Context, snapshotType domain.SnapshotType, scope string) (domain.Snapshot, error) {
	if r.pool == nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT id, snapshot_type, scope, snapshot_date::text, saved_date,
			total_opportunities, buckets, is_manual, COALESCE(description, ''), created_at
		 FROM snapshots
		 WHERE snapshot_type = $1 AND scope = $2
		 ORDER BY snapshot_date DESC, saved_date DESC
		 LIMIT 1`,
		string(snapshotType),
		scope,
	)

	return scanSnapshot(row)
}

func (r *snapshotRepository) GetCustom(ctx context.Context, scope string, snapshotDate string) (domain.Snapshot, error) {
	if r.pool == nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT id, snapshot_type, scope, snapshot_date::text, saved_date,
			total_opportunities, buckets, is_manual, COALESCE(description, ''), created_at
		 FROM snapshots
		 WHERE snapshot_type = 'custom' AND scope = $1 AND snapshot_date = $2`,
		scope,
		snapshotDate,
	)

	return scanSnapshot(row)
}

func (r *snapshotRepository) ListDates(ctx context.Context) ([]SnapshotDateInfo, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("snapshot repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT snapshot_type, scope, snapshot_date::text, COALESCE(description, '')
		 FROM snapshots
		 ORDER BY snapshot_date DESC, snapshot_type, scope`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dates: %w", err)
	}
	defer rows.Close()

	infos := []SnapshotDateInfo{}
	for rows.Next() {
		var (
			info    SnapshotDateInfo
			rawType string
		)
		if scanErr := rows.Scan(&rawType, &info.Scope, &info.SnapshotDate, &info.Description); scanErr != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", scanErr)
		}
		info.SnapshotType = domain.SnapshotType(rawType)
		infos = append(infos, info)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate snapshot dates: %w", rowsErr)
	}

	return infos, nil
}

func scanSnapshot(row pgx.Row) (domain.Snapshot, error) {
	var (
		snap      domain.Snapshot
		rawType   string
		savedDate pgtype.Timestamptz
		buckets   []byte
		createdAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&snap.ID,
		&rawType,
		&snap.Scope,
		&snap.SnapshotDate,
		&savedDate,
		&snap.TotalOpportunities,
		&buckets,
		&snap.IsManual,
		&snap.Description,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snap.Type = domain.SnapshotType(rawType)
	if savedDate.Valid {
		snap.SavedDate = savedDate.Time
	}
	if createdAt.Valid {
		snap.CreatedAt = createdAt.Time
	}

	totals, err := domain.BucketTotalsFromJSONB(buckets)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decode snapshot buckets: %w", err)
	}
	snap.Buckets = totals

	return snap, nil
}
