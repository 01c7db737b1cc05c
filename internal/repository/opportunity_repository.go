package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/salestrack/oppsmon/internal/db"
	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/identity"
)

const opportunityColumns = `uid, project_name, project_code, rev, client, solutions, industries,
	date_received, client_deadline, decision, account_mgr, pic, bom, status,
	submitted_date, margin, final_amt, opp_status, date_awarded_lost, lost_rca,
	remarks, forecast_date, last_modified_by, created_at, updated_at`

type opportunityRepository struct {
	conn *db.Connection
}

// NewOpportunityRepository wires a repository backed by the shared pool.
func NewOpportunityRepository(conn *db.Connection) OpportunityRepository {
	return &opportunityRepository{conn: conn}
}

func (r *opportunityRepository) Insert(ctx context.Context, opp domain.Opportunity, initial domain.ChangeSet) (domain.Opportunity, error) {
	if r.conn == nil {
		return domain.Opportunity{}, fmt.Errorf("opportunity repository not initialized")
	}

	changedFields, err := json.Marshal(initial)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("failed to encode initial revision: %w", err)
	}

	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(
			ctx,
			`INSERT INTO opportunities (uid, project_name, project_code, rev, client, solutions,
				industries, date_received, client_deadline, decision, account_mgr, pic, bom,
				status, submitted_date, margin, final_amt, opp_status, date_awarded_lost,
				lost_rca, remarks, forecast_date, last_modified_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
				$17, $18, $19, $20, $21, $22, $23)`,
			opp.UID,
			opp.ProjectName,
			nullString(opp.ProjectCode),
			opp.Rev,
			nullString(opp.Client),
			nullString(opp.Solutions),
			nullString(opp.Industries),
			nullString(opp.DateReceived),
			nullString(opp.ClientDeadline),
			nullString(opp.Decision),
			nullString(opp.AccountMgr),
			nullString(opp.PIC),
			nullString(opp.BOM),
			nullString(opp.Status),
			nullString(opp.SubmittedDate),
			opp.Margin,
			opp.FinalAmt,
			nullString(opp.OppStatus),
			nullString(opp.DateAwardedLost),
			nullString(opp.LostRCA),
			nullString(opp.Remarks),
			nullString(opp.ForecastDate),
			nullString(opp.LastModifiedBy),
		)
		if execErr != nil {
			return fmt.Errorf("failed to insert opportunity: %w", execErr)
		}

		_, execErr = tx.Exec(
			ctx,
			`INSERT INTO opportunity_revisions (opportunity_uid, revision_number, changed_by, changed_fields)
			 VALUES ($1, 1, $2, $3)`,
			opp.UID,
			nullString(opp.LastModifiedBy),
			changedFields,
		)
		if execErr != nil {
			return fmt.Errorf("failed to record initial revision: %w", execErr)
		}

		return nil
	})
	if err != nil {
		return domain.Opportunity{}, err
	}

	return r.GetByUID(ctx, opp.UID)
}

func (r *opportunityRepository) Update(ctx context.Context, opp domain.Opportunity, changes domain.ChangeSet, changedBy string) (domain.Revision, error) {
	if r.conn == nil {
		return domain.Revision{}, fmt.Errorf("opportunity repository not initialized")
	}

	changedFields, err := json.Marshal(changes)
	if err != nil {
		return domain.Revision{}, fmt.Errorf("failed to encode change set: %w", err)
	}

	var revision domain.Revision
	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		// Lock the row so concurrent merges of the same opportunity
		// serialize and revision numbering stays gapless.
		var lockedUID uuid.UUID
		if scanErr := tx.QueryRow(
			ctx,
			`SELECT uid FROM opportunities WHERE uid = $1 FOR UPDATE`,
			opp.UID,
		).Scan(&lockedUID); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock opportunity: %w", scanErr)
		}

		_, execErr := tx.Exec(
			ctx,
			`UPDATE opportunities SET
				project_name = $2, project_code = $3, rev = $4, client = $5,
				solutions = $6, industries = $7, date_received = $8,
				client_deadline = $9, decision = $10, account_mgr = $11, pic = $12,
				bom = $13, status = $14, submitted_date = $15, margin = $16,
				final_amt = $17, opp_status = $18, date_awarded_lost = $19,
				lost_rca = $20, remarks = $21, forecast_date = $22,
				last_modified_by = $23, updated_at = NOW()
			 WHERE uid = $1`,
			opp.UID,
			opp.ProjectName,
			nullString(opp.ProjectCode),
			opp.Rev,
			nullString(opp.Client),
			nullString(opp.Solutions),
			nullString(opp.Industries),
			nullString(opp.DateReceived),
			nullString(opp.ClientDeadline),
			nullString(opp.Decision),
			nullString(opp.AccountMgr),
			nullString(opp.PIC),
			nullString(opp.BOM),
			nullString(opp.Status),
			nullString(opp.SubmittedDate),
			opp.Margin,
			opp.FinalAmt,
			nullString(opp.OppStatus),
			nullString(opp.DateAwardedLost),
			nullString(opp.LostRCA),
			nullString(opp.Remarks),
			nullString(opp.ForecastDate),
			nullString(changedBy),
		)
		if execErr != nil {
			return fmt.Errorf("failed to update opportunity: %w", execErr)
		}

		var changedAt pgtype.Timestamptz
		if scanErr := tx.QueryRow(
			ctx,
			`INSERT INTO opportunity_revisions (opportunity_uid, revision_number, changed_by, changed_fields)
			 SELECT $1, COALESCE(MAX(revision_number), 0) + 1, $2, $3
			 FROM opportunity_revisions
			 WHERE opportunity_uid = $1
			 RETURNING id, revision_number, changed_at`,
			opp.UID,
			nullString(changedBy),
			changedFields,
		).Scan(&revision.ID, &revision.RevisionNumber, &changedAt); scanErr != nil {
			return fmt.Errorf("failed to record revision: %w", scanErr)
		}

		revision.OpportunityUID = opp.UID
		revision.ChangedBy = changedBy
		revision.ChangedFields = changes
		if changedAt.Valid {
			revision.ChangedAt = changedAt.Time
		}

		return nil
	})
	if err != nil {
		return domain.Revision{}, err
	}

	return revision, nil
}

func (r *opportunityRepository) GetByUID(ctx context.Context, uid uuid.UUID) (domain.Opportunity, error) {
	if r.conn == nil {
		return domain.Opportunity{}, fmt.Errorf("opportunity repository not initialized")
	}

	row := r.conn.Pool.QueryRow(
		ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE uid = $1`,
		uid,
	)

	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("failed to get opportunity: %w", err)
	}

	return opp, nil
}

func (r *opportunityRepository) List(ctx context.Context, scope string) ([]domain.Opportunity, error) {
	if r.conn == nil {
		return nil, fmt.Errorf("opportunity repository not initialized")
	}

	query := `SELECT ` + opportunityColumns + ` FROM opportunities ORDER BY project_name`
	args := []any{}
	if scope != domain.ScopeGlobal && scope != "" {
		query = `SELECT ` + opportunityColumns + ` FROM opportunities WHERE account_mgr = $1 ORDER BY project_name`
		args = append(args, scope)
	}

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	opps := []domain.Opportunity{}
	for rows.Next() {
		opp, scanErr := scanOpportunity(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", scanErr)
		}
		opps = append(opps, opp)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate opportunities: %w", rowsErr)
	}

	return opps, nil
}

func (r *opportunityRepository) IdentityKeys(ctx context.Context) ([]identity.Key, error) {
	if r.conn == nil {
		return nil, fmt.Errorf("opportunity repository not initialized")
	}

	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT uid, project_name, COALESCE(project_code, '') FROM opportunities`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity keys: %w", err)
	}
	defer rows.Close()

	keys := []identity.Key{}
	for rows.Next() {
		var key identity.Key
		if scanErr := rows.Scan(&key.UID, &key.ProjectName, &key.ProjectCode); scanErr != nil {
			return nil, fmt.Errorf("failed to scan identity key: %w", scanErr)
		}
		keys = append(keys, key)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate identity keys: %w", rowsErr)
	}

	return keys, nil
}

func (r *opportunityRepository) ListAccountManagers(ctx context.Context) ([]string, error) {
	if r.conn == nil {
		return nil, fmt.Errorf("opportunity repository not initialized")
	}

	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT DISTINCT account_mgr FROM opportunities
		 WHERE account_mgr IS NOT NULL AND account_mgr <> ''
		 ORDER BY account_mgr`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list account managers: %w", err)
	}
	defer rows.Close()

	managers := []string{}
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			return nil, fmt.Errorf("failed to scan account manager: %w", scanErr)
		}
		managers = append(managers, name)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate account managers: %w", rowsErr)
	}

	return managers, nil
}

func (r *opportunityRepository) Count(ctx context.Context) (int64, error) {
	if r.conn == nil {
		return 0, fmt.Errorf("opportunity repository not initialized")
	}

	var count int64
	if err := r.conn.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count opportunities: %w", err)
	}

	return count, nil
}

// scanOpportunity maps one row onto the domain type, collapsing SQL nulls
// to empty strings for text columns.
func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		opp         domain.Opportunity
		projectCode pgtype.Text
		rev         pgtype.Int4
		textCols    [17]pgtype.Text
		margin      pgtype.Float8
		finalAmt    pgtype.Float8
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)

	if err := row.Scan(
		&opp.UID,
		&opp.ProjectName,
		&projectCode,
		&rev,
		&textCols[0],  // client
		&textCols[1],  // solutions
		&textCols[2],  // industries
		&textCols[3],  // date_received
		&textCols[4],  // client_deadline
		&textCols[5],  // decision
		&textCols[6],  // account_mgr
		&textCols[7],  // pic
		&textCols[8],  // bom
		&textCols[9],  // status
		&textCols[10], // submitted_date
		&margin,
		&finalAmt,
		&textCols[11], // opp_status
		&textCols[12], // date_awarded_lost
		&textCols[13], // lost_rca
		&textCols[14], // remarks
		&textCols[15], // forecast_date
		&textCols[16], // last_modified_by
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Opportunity{}, err
	}

	opp.ProjectCode = projectCode.String
	if rev.Valid {
		value := int(rev.Int32)
		opp.Rev = &value
	}
	opp.Client = textCols[0].String
	opp.Solutions = textCols[1].String
	opp.Industries = textCols[2].String
	opp.DateReceived = textCols[3].String
	opp.ClientDeadline = textCols[4].String
	opp.Decision = textCols[5].String
	opp.AccountMgr = textCols[6].String
	opp.PIC = textCols[7].String
	opp.BOM = textCols[8].String
	opp.Status = textCols[9].String
	opp.SubmittedDate = textCols[10].String
	if margin.Valid {
		value := margin.Float64
		opp.Margin = &value
	}
	if finalAmt.Valid {
		value := finalAmt.Float64
		opp.FinalAmt = &value
	}
	opp.OppStatus = textCols[11].String
	opp.DateAwardedLost = textCols[12].String
	opp.LostRCA = textCols[13].String
	opp.Remarks = textCols[14].String
	opp.ForecastDate = textCols[15].String
	opp.LastModifiedBy = textCols[16].String
	if createdAt.Valid {
		opp.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		opp.UpdatedAt = updatedAt.Time
	}

	return opp, nil
}

// nullString maps empty strings to SQL NULL so empty and absent stay
// equivalent at the storage layer.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
