package domain

import (
	"encoding/json"
	"testing"
)

func TestDiffDetectsChangedFields(t *testing.T) {
	margin := 12.5
	prev := Candidate{ProjectName: "Harbor Upgrade", Client: "Acme", Status: "Submitted"}
	next := Candidate{ProjectName: "Harbor Upgrade", Client: "Acme Corp", Status: "Submitted", Margin: &margin}

	cs := Diff(prev, next)

	if cs.Len() != 2 {
		t.Fatalf("expected 2 changed fields, got %d: %v", cs.Len(), cs.Fields())
	}

	change, ok := cs.Get("client")
	if !ok {
		t.Fatalf("expected client change")
	}
	if change.Old != "Acme" || change.New != "Acme Corp" {
		t.Fatalf("unexpected client change: %+v", change)
	}

	change, ok = cs.Get("margin")
	if !ok {
		t.Fatalf("expected margin change")
	}
	if change.Old != nil || change.New != 12.5 {
		t.Fatalf("unexpected margin change: %+v", change)
	}
}

func TestDiffTreatsEmptyAndWhitespaceAsEqual(t *testing.T) {
	prev := Candidate{ProjectName: "Harbor Upgrade", Remarks: ""}
	next := Candidate{ProjectName: " Harbor Upgrade ", Remarks: "   "}

	if cs := Diff(prev, next); !cs.Empty() {
		t.Fatalf("expected no diff, got %v", cs.Fields())
	}
}

func TestDiffIsEmptyForIdenticalCandidates(t *testing.T) {
	rev := 3
	amt := 250000.0
	c := Candidate{ProjectName: "Harbor Upgrade", Rev: &rev, FinalAmt: &amt, Status: "Submitted"}

	if cs := Diff(c, c); !cs.Empty() {
		t.Fatalf("expected no diff, got %v", cs.Fields())
	}
}

func TestChangeSetMarshalPreservesSchemaOrder(t *testing.T) {
	prev := Candidate{ProjectName: "Harbor Upgrade"}
	next := Candidate{ProjectName: "Harbor Upgrade", ForecastDate: "2026-09-01", Client: "Acme", Decision: "Pending"}

	cs := Diff(prev, next)

	fields := cs.Fields()
	want := []string{"client", "decision", "forecast_date"}
	if len(fields) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, fields)
	}
	for i, field := range want {
		if fields[i] != field {
			t.Fatalf("expected fields %v, got %v", want, fields)
		}
	}

	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal returned error: %v", err)
	}

	var restored ChangeSet
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal returned error: %v", err)
	}

	restoredFields := restored.Fields()
	for i, field := range want {
		if restoredFields[i] != field {
			t.Fatalf("expected restored fields %v, got %v", want, restoredFields)
		}
	}
}

func TestInitialChangeSetOmitsEmptyFields(t *testing.T) {
	amt := 90000.0
	c := Candidate{ProjectName: "Harbor Upgrade", Client: "Acme", FinalAmt: &amt}

	cs := InitialChangeSet(c)

	if cs.Len() != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", cs.Len(), cs.Fields())
	}

	change, ok := cs.Get("project_name")
	if !ok {
		t.Fatalf("expected project_name in initial change set")
	}
	if change.Old != nil || change.New != "Harbor Upgrade" {
		t.Fatalf("unexpected initial change: %+v", change)
	}

	if _, ok := cs.Get("remarks"); ok {
		t.Fatalf("empty field should be omitted from initial change set")
	}
}
