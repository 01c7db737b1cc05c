package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotType names a baseline series. Recurring types keep at most one
// live baseline per scope; custom checkpoints accumulate by date.
type SnapshotType string

const (
	SnapshotWeekly  SnapshotType = "weekly"
	SnapshotMonthly SnapshotType = "monthly"
	SnapshotCustom  SnapshotType = "custom"
)

// ScopeGlobal is the aggregation boundary covering every opportunity;
// any other scope value is an account-manager code.
const ScopeGlobal = "global"

// ParseSnapshotType validates a snapshot type string.
func ParseSnapshotType(raw string) (SnapshotType, error) {
	switch SnapshotType(raw) {
	case SnapshotWeekly, SnapshotMonthly, SnapshotCustom:
		return SnapshotType(raw), nil
	}
	return "", fmt.Errorf("invalid snapshot type %q", raw)
}

// Recurring reports whether the type overwrites its previous baseline.
func (t SnapshotType) Recurring() bool {
	return t != SnapshotCustom
}

// BucketMetrics is the count/amount pair aggregated per bucket.
type BucketMetrics struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// BucketTotals holds the per-bucket aggregate for one scope at one
// instant. Every fixed bucket is present, zero-valued when empty.
type BucketTotals map[Bucket]BucketMetrics

// NewBucketTotals returns totals with every bucket initialized.
func NewBucketTotals() BucketTotals {
	totals := make(BucketTotals, len(Buckets))
	for _, b := range Buckets {
		totals[b] = BucketMetrics{}
	}
	return totals
}

// Add folds one opportunity into its classified bucket.
func (t BucketTotals) Add(o Opportunity) {
	bucket := Classify(o)
	m := t[bucket]
	m.Count++
	m.Amount += o.Amount()
	t[bucket] = m
}

// TotalCount sums counts across all buckets; with single-bucket
// classification this equals the number of rows scanned.
func (t BucketTotals) TotalCount() int {
	total := 0
	for _, m := range t {
		total += m.Count
	}
	return total
}

// MarshalJSONB encodes totals for the snapshots table.
func (t BucketTotals) MarshalJSONB() (json.RawMessage, error) {
	return json.Marshal(t)
}

// BucketTotalsFromJSONB decodes stored totals, filling in any bucket a
// newer binary knows about that an older snapshot predates.
func BucketTotalsFromJSONB(data json.RawMessage) (BucketTotals, error) {
	totals := NewBucketTotals()
	if len(data) == 0 {
		return totals, nil
	}
	if err := json.Unmarshal(data, &totals); err != nil {
		return nil, err
	}
	for _, b := range Buckets {
		if _, ok := totals[b]; !ok {
			totals[b] = BucketMetrics{}
		}
	}
	return totals, nil
}

// Snapshot is a named aggregate baseline. Written only by the aggregator;
// the delta calculator treats it as read-only.
type Snapshot struct {
	ID                 int64        `json:"id"`
	Type               SnapshotType `json:"snapshot_type"`
	Scope              string       `json:"scope"`
	SnapshotDate       string       `json:"snapshot_date"`
	SavedDate          time.Time    `json:"saved_date"`
	TotalOpportunities int          `json:"total_opportunities"`
	Buckets            BucketTotals `json:"buckets"`
	IsManual           bool         `json:"is_manual"`
	Description        string       `json:"description,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// BucketDelta is the per-bucket difference current − baseline.
type BucketDelta struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// SnapshotDelta compares the live aggregate against a stored baseline.
// When no baseline exists, HasBaseline is false and Deltas is nil: the
// caller renders absolute values without a delta indicator, never a
// fabricated zero.
type SnapshotDelta struct {
	Type         SnapshotType           `json:"snapshot_type"`
	Scope        string                 `json:"scope"`
	HasBaseline  bool                   `json:"has_baseline"`
	BaselineDate string                 `json:"baseline_date,omitempty"`
	Current      BucketTotals           `json:"current"`
	Baseline     BucketTotals           `json:"baseline,omitempty"`
	Deltas       map[Bucket]BucketDelta `json:"deltas,omitempty"`
	CurrentTotal int                    `json:"current_total"`
}
