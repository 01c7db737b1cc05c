package merge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/identity"
	"github.com/salestrack/oppsmon/internal/repository"
)

type stubOpportunityRepo struct {
	opps      map[uuid.UUID]domain.Opportunity
	revisions map[uuid.UUID][]domain.Revision
}

func newStubOpportunityRepo() *stubOpportunityRepo {
	return &stubOpportunityRepo{
		opps:      map[uuid.UUID]domain.Opportunity{},
		revisions: map[uuid.UUID][]domain.Revision{},
	}
}

func (s *stubOpportunityRepo) Insert(_ context.Context, opp domain.Opportunity, initial domain.ChangeSet) (domain.Opportunity, error) {
	s.opps[opp.UID] = opp
	s.revisions[opp.UID] = []domain.Revision{{
		OpportunityUID: opp.UID,
		RevisionNumber: 1,
		ChangedBy:      opp.LastModifiedBy,
		ChangedAt:      time.Now(),
		ChangedFields:  initial,
	}}
	return opp, nil
}

func (s *stubOpportunityRepo) Update(_ context.Context, opp domain.Opportunity, changes domain.ChangeSet, changedBy string) (domain.Revision, error) {
	if _, ok := s.opps[opp.UID]; !ok {
		return domain.Revision{}, repository.ErrNotFound
	}
	s.opps[opp.UID] = opp
	revision := domain.Revision{
		OpportunityUID: opp.UID,
		RevisionNumber: len(s.revisions[opp.UID]) + 1,
		ChangedBy:      changedBy,
		ChangedAt:      time.Now(),
		ChangedFields:  changes,
	}
	s.revisions[opp.UID] = append(s.revisions[opp.UID], revision)
	return revision, nil
}

func (s *stubOpportunityRepo) GetByUID(_ context.Context, uid uuid.UUID) (domain.Opportunity, error) {
	opp, ok := s.opps[uid]
	if !ok {
		return domain.Opportunity{}, repository.ErrNotFound
	}
	return opp, nil
}

func (s *stubOpportunityRepo) List(_ context.Context, scope string) ([]domain.Opportunity, error) {
	opps := []domain.Opportunity{}
	for _, opp := range s.opps {
		if scope == domain.ScopeGlobal || scope == "" || opp.AccountMgr == scope {
			opps = append(opps, opp)
		}
	}
	return opps, nil
}

func (s *stubOpportunityRepo) IdentityKeys(_ context.Context) ([]identity.Key, error) {
	keys := []identity.Key{}
	for _, opp := range s.opps {
		keys = append(keys, identity.Key{UID: opp.UID, ProjectName: opp.ProjectName, ProjectCode: opp.ProjectCode})
	}
	return keys, nil
}

func (s *stubOpportunityRepo) ListAccountManagers(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	managers := []string{}
	for _, opp := range s.opps {
		if opp.AccountMgr != "" && !seen[opp.AccountMgr] {
			seen[opp.AccountMgr] = true
			managers = append(managers, opp.AccountMgr)
		}
	}
	return managers, nil
}

func (s *stubOpportunityRepo) Count(_ context.Context) (int64, error) {
	return int64(len(s.opps)), nil
}

var _ repository.OpportunityRepository = (*stubOpportunityRepo)(nil)

type stubImportLogRepo struct {
	entries []domain.ImportLogEntry
}

func (s *stubImportLogRepo) Record(_ context.Context, entry domain.ImportLogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubImportLogRepo) List(_ context.Context, jobID uuid.UUID, _ int, _ int) ([]domain.ImportLogEntry, error) {
	logs := []domain.ImportLogEntry{}
	for _, entry := range s.entries {
		if entry.JobID == jobID {
			logs = append(logs, entry)
		}
	}
	return logs, nil
}

var _ repository.ImportLogRepository = (*stubImportLogRepo)(nil)

func TestImportBatchCreatesThenReimportIsIdempotent(t *testing.T) {
	repo := newStubOpportunityRepo()
	logs := &stubImportLogRepo{}
	service := NewService(repo, logs)

	req := BatchRequest{
		SourceFile: "opps.csv",
		ChangedBy:  "importer",
		Rows: []Row{
			{Number: 2, Candidate: domain.Candidate{ProjectName: "Harbor Upgrade", ProjectCode: "HU-001", Status: "Submitted"}},
			{Number: 3, Candidate: domain.Candidate{ProjectName: "Dock Expansion", ProjectCode: "DX-204", Status: "On-Going"}},
		},
	}

	summary, err := service.ImportBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if summary.Created != 2 || summary.Updated != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// Same file again: nothing changes, no new revisions.
	summary, err = service.ImportBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("re-import returned error: %v", err)
	}
	if summary.Created != 0 || summary.Updated != 0 || summary.Unchanged != 2 {
		t.Fatalf("re-import must be idempotent, got %+v", summary)
	}

	for uid, revisions := range repo.revisions {
		if len(revisions) != 1 {
			t.Fatalf("opportunity %s has %d revisions after idempotent re-import", uid, len(revisions))
		}
	}
}

func TestImportBatchUpdatesAndRecordsRevision(t *testing.T) {
	repo := newStubOpportunityRepo()
	service := NewService(repo, &stubImportLogRepo{})

	first := BatchRequest{
		ChangedBy: "importer",
		Rows: []Row{
			{Number: 2, Candidate: domain.Candidate{ProjectName: "Harbor Upgrade", Status: "Submitted"}},
		},
	}
	if _, err := service.ImportBatch(context.Background(), first); err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	second := BatchRequest{
		ChangedBy: "importer",
		Rows: []Row{
			{Number: 2, Candidate: domain.Candidate{ProjectName: "Harbor Upgrade", Status: "Submitted", OppStatus: "OP90"}},
		},
	}
	summary, err := service.ImportBatch(context.Background(), second)
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("expected 1 update, got %+v", summary)
	}

	if len(repo.opps) != 1 {
		t.Fatalf("re-import must not create a second opportunity, got %d", len(repo.opps))
	}

	for _, revisions := range repo.revisions {
		if len(revisions) != 2 {
			t.Fatalf("expected 2 revisions, got %d", len(revisions))
		}
		latest := revisions[1]
		if latest.RevisionNumber != 2 {
			t.Fatalf("expected revision number 2, got %d", latest.RevisionNumber)
		}
		change, ok := latest.ChangedFields.Get("opp_status")
		if !ok {
			t.Fatalf("expected opp_status in change set, got %v", latest.ChangedFields.Fields())
		}
		if change.New != "OP90" {
			t.Fatalf("unexpected change: %+v", change)
		}
	}
}

func TestImportBatchSkipsAndLogsBadRows(t *testing.T) {
	repo := newStubOpportunityRepo()
	logs := &stubImportLogRepo{}
	service := NewService(repo, logs)

	req := BatchRequest{
		SourceFile: "opps.csv",
		ChangedBy:  "importer",
		Rows: []Row{
			{Number: 2, Candidate: domain.Candidate{ProjectName: "Harbor Upgrade"}},
			{Number: 3, Candidate: domain.Candidate{ProjectName: "   "}},
			{Number: 4, Candidate: domain.Candidate{ProjectName: "Dock Expansion"}},
		},
	}

	summary, err := service.ImportBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if summary.Created != 2 || summary.Skipped != 1 {
		t.Fatalf("bad row must not abort the batch: %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Row != 3 {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}

	if len(logs.entries) != 1 {
		t.Fatalf("expected 1 import log entry, got %d", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.JobID != summary.JobID || entry.RowNumber == nil || *entry.RowNumber != 3 {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestImportBatchSkipsAmbiguousIdentity(t *testing.T) {
	repo := newStubOpportunityRepo()
	service := NewService(repo, &stubImportLogRepo{})

	// Two stored records share a project code.
	for _, name := range []string{"Harbor Upgrade", "Harbor Upgrade Phase 2"} {
		opp := domain.NewOpportunity(domain.Candidate{ProjectName: name, ProjectCode: "SHARED"}, "seed")
		if _, err := repo.Insert(context.Background(), opp, domain.ChangeSet{}); err != nil {
			t.Fatalf("seed insert returned error: %v", err)
		}
	}

	req := BatchRequest{
		ChangedBy: "importer",
		Rows: []Row{
			{Number: 2, Candidate: domain.Candidate{ProjectName: "Renamed Harbor Deal", ProjectCode: "SHARED"}},
		},
	}

	summary, err := service.ImportBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if summary.Skipped != 1 || summary.Created != 0 {
		t.Fatalf("ambiguous row must be skipped, not merged or created: %+v", summary)
	}
	if len(repo.opps) != 2 {
		t.Fatalf("ambiguous row must not create a record, got %d opportunities", len(repo.opps))
	}
}

func TestImportBatchResolvesRowCreatedEarlierInSameFile(t *testing.T) {
	repo := newStubOpportunityRepo()
	service := NewService(repo, &stubImportLogRepo{})

	req := BatchRequest{
		ChangedBy: "importer",
		Rows: []Row{
			{Number: 2, Candidate: domain.Candidate{ProjectName: "Harbor Upgrade"}},
			{Number: 3, Candidate: domain.Candidate{ProjectName: "harbor upgrade", Client: "Acme"}},
		},
	}

	summary, err := service.ImportBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if summary.Created != 1 || summary.Updated != 1 {
		t.Fatalf("second row must resolve to the first row's record: %+v", summary)
	}
	if len(repo.opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(repo.opps))
	}
}

func TestCreateRejectsExistingIdentity(t *testing.T) {
	repo := newStubOpportunityRepo()
	service := NewService(repo, &stubImportLogRepo{})

	if _, err := service.Create(context.Background(), domain.Candidate{ProjectName: "Harbor Upgrade"}, "alice"); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	if _, err := service.Create(context.Background(), domain.Candidate{ProjectName: "Harbor Upgrade"}, "bob"); err == nil {
		t.Fatalf("expected error for duplicate identity")
	}
}

func TestUpdateUnknownOpportunity(t *testing.T) {
	service := NewService(newStubOpportunityRepo(), &stubImportLogRepo{})

	_, err := service.Update(context.Background(), uuid.New(), domain.Candidate{ProjectName: "Harbor Upgrade"}, "alice")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyRejectsInvalidCandidate(t *testing.T) {
	service := NewService(newStubOpportunityRepo(), &stubImportLogRepo{})
	ix := identity.BuildIndex(nil)

	_, err := service.Apply(context.Background(), ix, domain.Candidate{}, "alice")
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
