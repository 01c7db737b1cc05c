// Package snapshot computes aggregate baselines over the live opportunity
// set and the deltas against them.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/repository"
)

// Aggregator folds live opportunities into per-bucket totals and persists
// them as baselines. It never mutates opportunities or revisions.
type Aggregator struct {
	opps  repository.OpportunityRepository
	snaps repository.SnapshotRepository
}

// NewAggregator wires the snapshot aggregator.
func NewAggregator(opps repository.OpportunityRepository, snaps repository.SnapshotRepository) *Aggregator {
	return &Aggregator{opps: opps, snaps: snaps}
}

// CaptureOptions qualifies one capture.
type CaptureOptions struct {
	Manual      bool
	Description string
	// Date overrides the snapshot date, format 2006-01-02. Defaults to
	// today.
	Date string
}

// ComputeLive aggregates the current opportunity set for one scope without
// persisting anything. This is what delta endpoints call on every request.
func (a *Aggregator) ComputeLive(ctx context.Context, scope string) (domain.BucketTotals, error) {
	opps, err := a.opps.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunities for scope %q: %w", scope, err)
	}

	totals := domain.NewBucketTotals()
	for _, opp := range opps {
		totals.Add(opp)
	}

	return totals, nil
}

// Capture aggregates one scope and persists it as a baseline of the given
// type. Recurring types overwrite the previous baseline for the scope;
// custom checkpoints accumulate by date.
func (a *Aggregator) Capture(ctx context.Context, snapshotType domain.SnapshotType, scope string, opts CaptureOptions) (domain.Snapshot, error) {
	totals, err := a.ComputeLive(ctx, scope)
	if err != nil {
		return domain.Snapshot{}, err
	}

	date := opts.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	snap := domain.Snapshot{
		Type:               snapshotType,
		Scope:              scope,
		SnapshotDate:       date,
		TotalOpportunities: totals.TotalCount(),
		Buckets:            totals,
		IsManual:           opts.Manual,
		Description:        opts.Description,
	}

	stored, err := a.snaps.Upsert(ctx, snap)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to store %s snapshot for scope %q: %w", snapshotType, scope, err)
	}

	log.Printf("[SNAPSHOT] captured %s snapshot for scope %q: %d opportunities", snapshotType, scope, stored.TotalOpportunities)
	return stored, nil
}

// CaptureAll captures the global scope plus one snapshot per account
// manager. A failing scope is logged and skipped so one bad scope cannot
// block the rest of a scheduled run; the first error is still reported.
func (a *Aggregator) CaptureAll(ctx context.Context, snapshotType domain.SnapshotType, opts CaptureOptions) ([]domain.Snapshot, error) {
	scopes := []string{domain.ScopeGlobal}
	managers, err := a.opps.ListAccountManagers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list account managers: %w", err)
	}
	scopes = append(scopes, managers...)

	snapshots := []domain.Snapshot{}
	var firstErr error
	for _, scope := range scopes {
		snap, captureErr := a.Capture(ctx, snapshotType, scope, opts)
		if captureErr != nil {
			log.Printf("[SNAPSHOT] scope %q failed: %v", scope, captureErr)
			if firstErr == nil {
				firstErr = captureErr
			}
			continue
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, firstErr
}
