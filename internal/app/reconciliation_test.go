package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
	"github.com/waspershola/hospitech-nexus-sub003/pkg/providerclient"
)

type reconRepoStub struct {
	store.Repository

	unmatched  []domain.ReconciliationRecord
	candidates map[uuid.UUID][]domain.PlatformPayment
	linkedTo   map[uuid.UUID]uuid.UUID
	linkErrFor map[uuid.UUID]error

	inserted []domain.ReconciliationRecord

	upserted     []domain.ReconciliationRecord
	upsertErrFor map[string]error
}

func (s *reconRepoStub) ListUnmatchedRecords(ctx context.Context, tenantID uuid.UUID) ([]domain.ReconciliationRecord, error) {
	return s.unmatched, nil
}

func (s *reconRepoStub) FindCandidatePayments(ctx context.Context, tenantID uuid.UUID, amount int64, epsilon int64) ([]domain.PlatformPayment, error) {
	var matching []domain.PlatformPayment
	for _, payments := range s.candidates {
		for _, p := range payments {
			diff := p.TotalAmount - amount
			if diff < 0 {
				diff = -diff
			}
			if diff <= epsilon {
				matching = append(matching, p)
			}
		}
	}
	// Earliest-created first, mirroring the store's ordering.
	for i := 0; i < len(matching); i++ {
		for j := i + 1; j < len(matching); j++ {
			if matching[j].CreatedAt.Before(matching[i].CreatedAt) {
				matching[i], matching[j] = matching[j], matching[i]
			}
		}
	}
	return matching, nil
}

func (s *reconRepoStub) LinkRecordToPayment(ctx context.Context, recordID, paymentID uuid.UUID, status domain.ReconciliationStatus, now time.Time) error {
	if err, ok := s.linkErrFor[paymentID]; ok {
		return err
	}
	if s.linkedTo == nil {
		s.linkedTo = make(map[uuid.UUID]uuid.UUID)
	}
	s.linkedTo[recordID] = paymentID
	return nil
}

func (s *reconRepoStub) InsertReconciliationRecord(ctx context.Context, record *domain.ReconciliationRecord) error {
	s.inserted = append(s.inserted, *record)
	return nil
}

func (s *reconRepoStub) UpsertProviderRecord(ctx context.Context, record *domain.ReconciliationRecord) error {
	if err, ok := s.upsertErrFor[record.Reference]; ok {
		return err
	}
	s.upserted = append(s.upserted, *record)
	return nil
}

type lockerStub struct {
	acquired bool
	released bool
}

func (l *lockerStub) Acquire(ctx context.Context, scope string, tenantID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.released = true }, true, nil
}

func TestAutoMatch_PrefersEarliestCandidate(t *testing.T) {
	recordID := uuid.New()
	earlier := domain.PlatformPayment{ID: uuid.New(), TotalAmount: 105000, CreatedAt: time.Now().Add(-2 * time.Hour)}
	later := domain.PlatformPayment{ID: uuid.New(), TotalAmount: 105000, CreatedAt: time.Now().Add(-1 * time.Hour)}

	repo := &reconRepoStub{
		unmatched: []domain.ReconciliationRecord{{ID: recordID, Amount: 105000}},
		candidates: map[uuid.UUID][]domain.PlatformPayment{
			uuid.New(): {later, earlier},
		},
	}
	locker := &lockerStub{acquired: true}
	svc := NewService(repo, nil, nil, locker)

	result, err := svc.AutoMatch(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("AutoMatch returned error: %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("expected 1 match, got %d", result.Matched)
	}
	if repo.linkedTo[recordID] != earlier.ID {
		t.Fatal("expected the earliest-created payment to win the tie")
	}
	if !locker.released {
		t.Fatal("expected the tenant lock to be released")
	}
}

func TestAutoMatch_SkipsAlreadyLinkedPayment(t *testing.T) {
	recordID := uuid.New()
	taken := domain.PlatformPayment{ID: uuid.New(), TotalAmount: 105000, CreatedAt: time.Now().Add(-2 * time.Hour)}
	free := domain.PlatformPayment{ID: uuid.New(), TotalAmount: 105000, CreatedAt: time.Now().Add(-1 * time.Hour)}

	repo := &reconRepoStub{
		unmatched: []domain.ReconciliationRecord{{ID: recordID, Amount: 105000}},
		candidates: map[uuid.UUID][]domain.PlatformPayment{
			uuid.New(): {taken, free},
		},
		linkErrFor: map[uuid.UUID]error{taken.ID: store.ErrPaymentLinked},
	}
	svc := NewService(repo, nil, nil, &lockerStub{acquired: true})

	result, err := svc.AutoMatch(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("AutoMatch returned error: %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("expected 1 match, got %d", result.Matched)
	}
	if repo.linkedTo[recordID] != free.ID {
		t.Fatal("expected the next candidate after the linked one")
	}
}

func TestAutoMatch_NoCandidateSkips(t *testing.T) {
	repo := &reconRepoStub{
		unmatched: []domain.ReconciliationRecord{{ID: uuid.New(), Amount: 99999}},
	}
	svc := NewService(repo, nil, nil, &lockerStub{acquired: true})

	result, err := svc.AutoMatch(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("AutoMatch returned error: %v", err)
	}
	if result.Skipped != 1 || result.Matched != 0 {
		t.Fatalf("expected 1 skip and 0 matches, got %+v", result)
	}
}

func TestAutoMatch_LockHeldReturnsError(t *testing.T) {
	svc := NewService(&reconRepoStub{}, nil, nil, &lockerStub{acquired: false})

	_, err := svc.AutoMatch(context.Background(), uuid.New())
	if !errors.Is(err, ErrAutoMatchRunning) {
		t.Fatalf("expected ErrAutoMatchRunning, got %v", err)
	}
}

func TestProviderSync_AlreadyMatchedRecordIsSkipped(t *testing.T) {
	repo := &reconRepoStub{
		upsertErrFor: map[string]error{"PF-OLD": store.ErrRecordMatched},
	}
	gateway := &providerGatewayStub{listed: []providerclient.Transaction{
		{Reference: "PF-OLD", Amount: 105000, Status: "successful", Date: time.Now()},
		{Reference: "PF-NEW", Amount: 50000, Status: "successful", Date: time.Now()},
	}}
	svc := NewService(repo, nil, gateway, &lockerStub{acquired: true})

	start := time.Now().Add(-24 * time.Hour)
	_, err := svc.ProviderSync(context.Background(), uuid.New(), domain.ProviderPaystack, start, time.Now())
	if err != nil {
		t.Fatalf("ProviderSync returned error: %v", err)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].Reference != "PF-NEW" {
		t.Fatalf("expected only the unmatched record to be upserted, got %+v", repo.upserted)
	}
}

func TestImportCSV_SkipsMalformedRows(t *testing.T) {
	repo := &reconRepoStub{}
	svc := NewService(repo, nil, nil, NoopLocker{})

	statement := strings.Join([]string{
		"reference,amount,date",
		"PS-001,1050.00,2026-08-01",
		"PS-002,not-a-number,2026-08-02",
		"",
		"PS-003,500.25,2026-08-03 14:30:00",
		"PS-004,100.00,yesterday",
		"only-two-fields,1.00",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), uuid.New(), strings.NewReader(statement))
	if err != nil {
		t.Fatalf("ImportCSV returned error: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("expected 2 imported rows, got %d", result.Imported)
	}
	if len(result.Rejected) != 3 {
		t.Fatalf("expected 3 rejected rows, got %d: %+v", len(result.Rejected), result.Rejected)
	}

	if repo.inserted[0].Amount != 105000 {
		t.Fatalf("expected major-unit amount converted to 105000, got %d", repo.inserted[0].Amount)
	}
	if repo.inserted[1].Amount != 50025 {
		t.Fatalf("expected 50025, got %d", repo.inserted[1].Amount)
	}
	for _, record := range repo.inserted {
		if record.Source != domain.ReconSourceCSV {
			t.Fatalf("expected csv source, got %q", record.Source)
		}
	}
}

func TestImportCSV_RejectedRowsCarryLineNumbers(t *testing.T) {
	svc := NewService(&reconRepoStub{}, nil, nil, NoopLocker{})

	statement := "reference,amount,date\nbad-row\n"
	result, err := svc.ImportCSV(context.Background(), uuid.New(), strings.NewReader(statement))
	if err != nil {
		t.Fatalf("ImportCSV returned error: %v", err)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Line != 2 {
		t.Fatalf("expected rejection on line 2, got %+v", result.Rejected)
	}
}
