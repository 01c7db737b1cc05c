package snapshot

import (
	"context"
	"testing"

	"github.com/salestrack/oppsmon/internal/domain"
)

func TestDeltaAgainstBaseline(t *testing.T) {
	opps := &stubOpportunityRepo{opps: []domain.Opportunity{
		{ProjectName: "A", Status: "Submitted", FinalAmt: amount(100)},
	}}
	snaps := newStubSnapshotRepo()
	aggregator := NewAggregator(opps, snaps)
	calculator := NewCalculator(aggregator, snaps)

	if _, err := aggregator.Capture(context.Background(), domain.SnapshotWeekly, domain.ScopeGlobal, CaptureOptions{Date: "2026-08-24"}); err != nil {
		t.Fatalf("capture returned error: %v", err)
	}

	// Pipeline moves after the baseline: one new submission, one win.
	opps.opps = append(opps.opps,
		domain.Opportunity{ProjectName: "B", Status: "Submitted", FinalAmt: amount(250)},
		domain.Opportunity{ProjectName: "C", OppStatus: "OP100", FinalAmt: amount(500)},
	)

	delta, err := calculator.Delta(context.Background(), domain.SnapshotWeekly, domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("delta returned error: %v", err)
	}

	if !delta.HasBaseline {
		t.Fatalf("expected baseline, got %+v", delta)
	}
	if delta.BaselineDate != "2026-08-24" {
		t.Fatalf("baseline date = %s, want 2026-08-24", delta.BaselineDate)
	}

	if got := delta.Deltas[domain.BucketSubmitted]; got.Count != 1 || got.Amount != 250 {
		t.Fatalf("submitted delta = %+v, want count 1 amount 250", got)
	}
	if got := delta.Deltas[domain.BucketOP100]; got.Count != 1 || got.Amount != 500 {
		t.Fatalf("op100 delta = %+v, want count 1 amount 500", got)
	}
	if got := delta.Deltas[domain.BucketLost]; got.Count != 0 || got.Amount != 0 {
		t.Fatalf("lost delta = %+v, want zero", got)
	}
	if delta.CurrentTotal != 3 {
		t.Fatalf("current total = %d, want 3", delta.CurrentTotal)
	}
}

func TestDeltaNegativeWhenBucketsShrink(t *testing.T) {
	opps := &stubOpportunityRepo{opps: []domain.Opportunity{
		{ProjectName: "A", Status: "Submitted", FinalAmt: amount(100)},
		{ProjectName: "B", Status: "Submitted", FinalAmt: amount(200)},
	}}
	snaps := newStubSnapshotRepo()
	aggregator := NewAggregator(opps, snaps)
	calculator := NewCalculator(aggregator, snaps)

	if _, err := aggregator.Capture(context.Background(), domain.SnapshotMonthly, domain.ScopeGlobal, CaptureOptions{Date: "2026-08-01"}); err != nil {
		t.Fatalf("capture returned error: %v", err)
	}

	// B moved from submitted to lost.
	opps.opps[1].Status = ""
	opps.opps[1].Decision = "Lost"

	delta, err := calculator.Delta(context.Background(), domain.SnapshotMonthly, domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("delta returned error: %v", err)
	}

	if got := delta.Deltas[domain.BucketSubmitted]; got.Count != -1 || got.Amount != -200 {
		t.Fatalf("submitted delta = %+v, want count -1 amount -200", got)
	}
	if got := delta.Deltas[domain.BucketLost]; got.Count != 1 {
		t.Fatalf("lost delta = %+v, want count 1", got)
	}
}

func TestDeltaWithoutBaseline(t *testing.T) {
	opps := &stubOpportunityRepo{opps: []domain.Opportunity{
		{ProjectName: "A", Status: "Submitted", FinalAmt: amount(100)},
	}}
	snaps := newStubSnapshotRepo()
	aggregator := NewAggregator(opps, snaps)
	calculator := NewCalculator(aggregator, snaps)

	delta, err := calculator.Delta(context.Background(), domain.SnapshotWeekly, domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("delta returned error: %v", err)
	}

	if delta.HasBaseline {
		t.Fatalf("expected no baseline")
	}
	if delta.Deltas != nil {
		t.Fatalf("deltas must not be fabricated without a baseline: %+v", delta.Deltas)
	}
	if got := delta.Current[domain.BucketSubmitted]; got.Count != 1 || got.Amount != 100 {
		t.Fatalf("current totals must still be reported: %+v", got)
	}
	if delta.CurrentTotal != 1 {
		t.Fatalf("current total = %d, want 1", delta.CurrentTotal)
	}
}

func TestDeltaAgainstCustomDate(t *testing.T) {
	opps := &stubOpportunityRepo{opps: []domain.Opportunity{
		{ProjectName: "A", Status: "Submitted"},
	}}
	snaps := newStubSnapshotRepo()
	aggregator := NewAggregator(opps, snaps)
	calculator := NewCalculator(aggregator, snaps)

	if _, err := aggregator.Capture(context.Background(), domain.SnapshotCustom, domain.ScopeGlobal, CaptureOptions{Manual: true, Date: "2026-08-01"}); err != nil {
		t.Fatalf("capture returned error: %v", err)
	}

	opps.opps = append(opps.opps, domain.Opportunity{ProjectName: "B", Status: "Submitted"})

	delta, err := calculator.DeltaAgainstDate(context.Background(), domain.ScopeGlobal, "2026-08-01")
	if err != nil {
		t.Fatalf("delta returned error: %v", err)
	}
	if !delta.HasBaseline {
		t.Fatalf("expected custom baseline")
	}
	if got := delta.Deltas[domain.BucketSubmitted]; got.Count != 1 {
		t.Fatalf("submitted delta = %+v, want count 1", got)
	}

	// Unknown date: absolute values only.
	delta, err = calculator.DeltaAgainstDate(context.Background(), domain.ScopeGlobal, "2025-01-01")
	if err != nil {
		t.Fatalf("delta returned error: %v", err)
	}
	if delta.HasBaseline {
		t.Fatalf("expected no baseline for unknown date")
	}
}
