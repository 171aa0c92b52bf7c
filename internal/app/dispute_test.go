package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
)

type disputeRepoStub struct {
	store.Repository

	entries  []domain.LedgerEntry
	created  *domain.Dispute
	resolved *domain.Dispute

	waivedIDs    []uuid.UUID
	waivedReason string
}

func (s *disputeRepoStub) FindLedgerEntries(ctx context.Context, ids []uuid.UUID) ([]domain.LedgerEntry, error) {
	return s.entries, nil
}

func (s *disputeRepoStub) CreateDispute(ctx context.Context, dispute *domain.Dispute) error {
	dispute.ID = uuid.New()
	s.created = dispute
	return nil
}

func (s *disputeRepoStub) ResolveDispute(ctx context.Context, id uuid.UUID, status domain.DisputeStatus, notes string, resolvedBy string, now time.Time) (*domain.Dispute, error) {
	if s.resolved == nil {
		return nil, store.ErrDisputeNotFound
	}
	s.resolved.Status = status
	s.resolved.ResolutionNotes = &notes
	return s.resolved, nil
}

func (s *disputeRepoStub) WaiveLedgerEntries(ctx context.Context, ids []uuid.UUID, reason string, notes *string, now time.Time) error {
	s.waivedIDs = ids
	s.waivedReason = reason
	return nil
}

func TestCreateDispute_Validation(t *testing.T) {
	svc := NewService(&disputeRepoStub{}, nil, nil, NoopLocker{})
	amount := int64(-5)

	cases := []struct {
		name   string
		params CreateDisputeParams
	}{
		{"no entries", CreateDisputeParams{Reason: "overcharged", RequestedAction: domain.ActionWaive}},
		{"blank reason", CreateDisputeParams{LedgerIDs: []uuid.UUID{uuid.New()}, Reason: "  ", RequestedAction: domain.ActionWaive}},
		{"bad action", CreateDisputeParams{LedgerIDs: []uuid.UUID{uuid.New()}, Reason: "overcharged", RequestedAction: "refund"}},
		{"reduce without amount", CreateDisputeParams{LedgerIDs: []uuid.UUID{uuid.New()}, Reason: "overcharged", RequestedAction: domain.ActionReduce}},
		{"reduce negative amount", CreateDisputeParams{LedgerIDs: []uuid.UUID{uuid.New()}, Reason: "overcharged", RequestedAction: domain.ActionReduce, RequestedAmount: &amount}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateDispute(context.Background(), tc.params)
			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateDispute_ReduceAmountBoundedByFeeTotal(t *testing.T) {
	ledgerID := uuid.New()
	repo := &disputeRepoStub{
		entries: []domain.LedgerEntry{{ID: ledgerID, FeeAmount: 100}},
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	tooMuch := int64(150)
	_, err := svc.CreateDispute(context.Background(), CreateDisputeParams{
		TenantID:        uuid.New(),
		LedgerIDs:       []uuid.UUID{ledgerID},
		Reason:          "rate was wrong",
		RequestedAction: domain.ActionReduce,
		RequestedAmount: &tooMuch,
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected reduce above fee total to fail, got %v", err)
	}

	fair := int64(80)
	dispute, err := svc.CreateDispute(context.Background(), CreateDisputeParams{
		TenantID:        uuid.New(),
		LedgerIDs:       []uuid.UUID{ledgerID},
		Reason:          "rate was wrong",
		RequestedAction: domain.ActionReduce,
		RequestedAmount: &fair,
	})
	if err != nil {
		t.Fatalf("CreateDispute returned error: %v", err)
	}
	if dispute.RequestedAmount == nil || *dispute.RequestedAmount != 80 {
		t.Fatal("expected requested amount to be recorded")
	}
}

func TestResolveDispute_RequiresNotes(t *testing.T) {
	svc := NewService(&disputeRepoStub{}, nil, nil, NoopLocker{})

	_, err := svc.ResolveDispute(context.Background(), uuid.New(), true, " ", "admin-1")
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for blank notes, got %v", err)
	}
}

func TestResolveDispute_ApprovedWaiveAlsoWaivesEntries(t *testing.T) {
	ledgerIDs := []uuid.UUID{uuid.New(), uuid.New()}
	repo := &disputeRepoStub{
		resolved: &domain.Dispute{
			ID:              uuid.New(),
			LedgerIDs:       ledgerIDs,
			DisputeReason:   "double charged",
			RequestedAction: domain.ActionWaive,
			Status:          domain.DisputeOpen,
		},
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	dispute, err := svc.ResolveDispute(context.Background(), repo.resolved.ID, true, "confirmed duplicate", "admin-1")
	if err != nil {
		t.Fatalf("ResolveDispute returned error: %v", err)
	}
	if dispute.Status != domain.DisputeApproved {
		t.Fatalf("expected approved status, got %s", dispute.Status)
	}
	if len(repo.waivedIDs) != 2 {
		t.Fatalf("expected disputed entries to be waived, got %v", repo.waivedIDs)
	}
	if repo.waivedReason != "double charged" {
		t.Fatalf("expected the dispute reason on the waiver, got %q", repo.waivedReason)
	}
}

func TestResolveDispute_RejectionDoesNotWaive(t *testing.T) {
	repo := &disputeRepoStub{
		resolved: &domain.Dispute{
			ID:              uuid.New(),
			LedgerIDs:       []uuid.UUID{uuid.New()},
			RequestedAction: domain.ActionWaive,
			Status:          domain.DisputeOpen,
		},
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	dispute, err := svc.ResolveDispute(context.Background(), repo.resolved.ID, false, "fee was correct", "admin-1")
	if err != nil {
		t.Fatalf("ResolveDispute returned error: %v", err)
	}
	if dispute.Status != domain.DisputeRejected {
		t.Fatalf("expected rejected status, got %s", dispute.Status)
	}
	if repo.waivedIDs != nil {
		t.Fatal("expected no waiver on rejection")
	}
}
