package identity

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/salestrack/oppsmon/internal/domain"
)

func TestResolveMatchesNameBeforeCode(t *testing.T) {
	byName := uuid.New()
	byCode := uuid.New()

	ix := BuildIndex([]Key{
		{UID: byName, ProjectName: "Harbor Upgrade", ProjectCode: "HU-001"},
		{UID: byCode, ProjectName: "Dock Expansion", ProjectCode: "DX-204"},
	})

	// Name match wins even when the code points elsewhere.
	uid, err := ix.Resolve(domain.Candidate{ProjectName: "harbor upgrade", ProjectCode: "DX-204"})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if uid != byName {
		t.Fatalf("expected name match %s, got %s", byName, uid)
	}
}

func TestResolveFallsBackToCode(t *testing.T) {
	existing := uuid.New()
	ix := BuildIndex([]Key{
		{UID: existing, ProjectName: "Harbor Upgrade", ProjectCode: "HU-001"},
	})

	uid, err := ix.Resolve(domain.Candidate{ProjectName: "Harbour Upgrade Phase 2", ProjectCode: " hu-001 "})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if uid != existing {
		t.Fatalf("expected code match %s, got %s", existing, uid)
	}
}

func TestResolveReturnsNotFound(t *testing.T) {
	ix := BuildIndex([]Key{
		{UID: uuid.New(), ProjectName: "Harbor Upgrade", ProjectCode: "HU-001"},
	})

	_, err := ix.Resolve(domain.Candidate{ProjectName: "Brand New Deal"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveRefusesAmbiguousName(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	ix := BuildIndex([]Key{
		{UID: first, ProjectName: "Harbor Upgrade", ProjectCode: "HU-001"},
		{UID: second, ProjectName: " HARBOR UPGRADE ", ProjectCode: "HU-002"},
	})

	_, err := ix.Resolve(domain.Candidate{ProjectName: "Harbor Upgrade"})
	if !errors.Is(err, ErrAmbiguousIdentity) {
		t.Fatalf("expected ErrAmbiguousIdentity, got %v", err)
	}

	var ambErr *AmbiguityError
	if !errors.As(err, &ambErr) {
		t.Fatalf("expected AmbiguityError, got %T", err)
	}
	if ambErr.Kind != "name" || len(ambErr.UIDs) != 2 {
		t.Fatalf("unexpected ambiguity detail: %+v", ambErr)
	}
}

func TestResolveRefusesAmbiguousCode(t *testing.T) {
	ix := BuildIndex([]Key{
		{UID: uuid.New(), ProjectName: "Harbor Upgrade", ProjectCode: "SHARED"},
		{UID: uuid.New(), ProjectName: "Dock Expansion", ProjectCode: "shared"},
	})

	_, err := ix.Resolve(domain.Candidate{ProjectName: "Unrelated Name", ProjectCode: "Shared"})
	if !errors.Is(err, ErrAmbiguousIdentity) {
		t.Fatalf("expected ErrAmbiguousIdentity, got %v", err)
	}
}

func TestAddRegistersMidBatchInserts(t *testing.T) {
	ix := BuildIndex(nil)

	created := uuid.New()
	ix.Add(Key{UID: created, ProjectName: "Harbor Upgrade", ProjectCode: "HU-001"})

	uid, err := ix.Resolve(domain.Candidate{ProjectName: "Harbor Upgrade"})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if uid != created {
		t.Fatalf("expected %s, got %s", created, uid)
	}
}

func TestAddIsIdempotentPerUID(t *testing.T) {
	ix := BuildIndex(nil)
	key := Key{UID: uuid.New(), ProjectName: "Harbor Upgrade"}

	ix.Add(key)
	ix.Add(key)

	if _, err := ix.Resolve(domain.Candidate{ProjectName: "Harbor Upgrade"}); err != nil {
		t.Fatalf("duplicate Add of same uid must not create ambiguity: %v", err)
	}
}
