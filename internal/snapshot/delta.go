package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/repository"
)

// Calculator compares the live aggregate against stored baselines. It is
// read-only: baselines are never written or modified here.
type Calculator struct {
	aggregator *Aggregator
	snaps      repository.SnapshotRepository
}

// NewCalculator wires the delta calculator.
func NewCalculator(aggregator *Aggregator, snaps repository.SnapshotRepository) *Calculator {
	return &Calculator{aggregator: aggregator, snaps: snaps}
}

// Delta computes current minus baseline for one (type, scope). When no
// baseline exists, HasBaseline is false and no deltas are fabricated; the
// current totals still come back so callers can render absolute values.
func (c *Calculator) Delta(ctx context.Context, snapshotType domain.SnapshotType, scope string) (domain.SnapshotDelta, error) {
	current, err := c.aggregator.ComputeLive(ctx, scope)
	if err != nil {
		return domain.SnapshotDelta{}, err
	}

	result := domain.SnapshotDelta{
		Type:         snapshotType,
		Scope:        scope,
		Current:      current,
		CurrentTotal: current.TotalCount(),
	}

	baseline, err := c.snaps.Latest(ctx, snapshotType, scope)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		return domain.SnapshotDelta{}, fmt.Errorf("failed to load %s baseline for scope %q: %w", snapshotType, scope, err)
	}

	fillDelta(&result, baseline)
	return result, nil
}

// DeltaAgainstDate compares against a specific custom checkpoint.
func (c *Calculator) DeltaAgainstDate(ctx context.Context, scope string, snapshotDate string) (domain.SnapshotDelta, error) {
	current, err := c.aggregator.ComputeLive(ctx, scope)
	if err != nil {
		return domain.SnapshotDelta{}, err
	}

	result := domain.SnapshotDelta{
		Type:         domain.SnapshotCustom,
		Scope:        scope,
		Current:      current,
		CurrentTotal: current.TotalCount(),
	}

	baseline, err := c.snaps.GetCustom(ctx, scope, snapshotDate)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		return domain.SnapshotDelta{}, fmt.Errorf("failed to load custom baseline %s for scope %q: %w", snapshotDate, scope, err)
	}

	fillDelta(&result, baseline)
	return result, nil
}

func fillDelta(result *domain.SnapshotDelta, baseline domain.Snapshot) {
	result.HasBaseline = true
	result.BaselineDate = baseline.SnapshotDate
	result.Baseline = baseline.Buckets

	deltas := make(map[domain.Bucket]domain.BucketDelta, len(domain.Buckets))
	for _, bucket := range domain.Buckets {
		cur := result.Current[bucket]
		base := baseline.Buckets[bucket]
		deltas[bucket] = domain.BucketDelta{
			Count:  cur.Count - base.Count,
			Amount: cur.Amount - base.Amount,
		}
	}
	result.Deltas = deltas
}
