package domain

import "strings"

// Bucket is one of the fixed business-status categories used for
// aggregation. The set is not user-configurable.
type Bucket string

const (
	BucketSubmitted    Bucket = "submitted"
	BucketOP100        Bucket = "op100"
	BucketOP90         Bucket = "op90"
	BucketOP60         Bucket = "op60"
	BucketOP30         Bucket = "op30"
	BucketLost         Bucket = "lost"
	BucketInactive     Bucket = "inactive"
	BucketOngoing      Bucket = "ongoing"
	BucketPending      Bucket = "pending"
	BucketDeclined     Bucket = "declined"
	BucketRevised      Bucket = "revised"
	BucketUnclassified Bucket = "unclassified"
)

// Buckets lists every bucket in presentation order. Snapshots carry an
// entry for each so aggregate totals reconcile against the raw row count.
var Buckets = []Bucket{
	BucketSubmitted,
	BucketOP100,
	BucketOP90,
	BucketOP60,
	BucketOP30,
	BucketLost,
	BucketInactive,
	BucketOngoing,
	BucketPending,
	BucketDeclined,
	BucketRevised,
	BucketUnclassified,
}

// Classify maps an opportunity's status-like fields to exactly one bucket.
// This is the single classification used by the aggregator, the delta
// calculator, and any reporting path; nothing else may reimplement it.
//
// Precedence: a Lost decision (or LOST opp_status) wins over everything,
// then Declined, then the pipeline opp_status, then the proposal status,
// then a Pending decision. Anything else is unclassified rather than
// silently dropped.
func Classify(o Opportunity) Bucket {
	decision := strings.ToLower(strings.TrimSpace(o.Decision))
	oppStatus := strings.ToLower(strings.TrimSpace(o.OppStatus))
	status := strings.ToLower(strings.TrimSpace(o.Status))

	if decision == "lost" || oppStatus == "lost" {
		return BucketLost
	}
	if decision == "decline" || decision == "declined" {
		return BucketDeclined
	}

	switch oppStatus {
	case "op100":
		return BucketOP100
	case "op90":
		return BucketOP90
	case "op60":
		return BucketOP60
	case "op30":
		return BucketOP30
	case "inactive":
		return BucketInactive
	case "revised":
		return BucketRevised
	}

	switch status {
	case "submitted":
		return BucketSubmitted
	case "on-going", "ongoing":
		return BucketOngoing
	}

	if decision == "pending" {
		return BucketPending
	}

	return BucketUnclassified
}
