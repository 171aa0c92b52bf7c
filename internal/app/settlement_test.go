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

type settlementRepoStub struct {
	store.Repository

	payment        *domain.PlatformPayment
	claimed        bool
	finalizeCalled bool
	finalizeParams store.FinalizePaymentParams
}

func (s *settlementRepoStub) FindPaymentByReference(ctx context.Context, reference string) (*domain.PlatformPayment, error) {
	if s.payment == nil {
		return nil, store.ErrPaymentNotFound
	}
	return s.payment, nil
}

type providerGatewayStub struct {
	status string
	listed []providerclient.Transaction
}

func (s *providerGatewayStub) VerifyTransaction(ctx context.Context, provider domain.Provider, reference string) (*providerclient.Transaction, error) {
	return &providerclient.Transaction{Reference: reference, Status: s.status}, nil
}

func (s *providerGatewayStub) ListTransactions(ctx context.Context, provider domain.Provider, start, end time.Time) ([]providerclient.Transaction, error) {
	return s.listed, nil
}

func (s *settlementRepoStub) FinalizePayment(ctx context.Context, params store.FinalizePaymentParams) (*store.FinalizePaymentResult, error) {
	s.finalizeCalled = true
	s.finalizeParams = params
	if s.payment == nil {
		return nil, store.ErrPaymentNotFound
	}
	if s.claimed {
		outcome := domain.PaymentFailed
		if params.Succeeded {
			outcome = domain.PaymentSuccessful
		}
		s.payment.Status = outcome
	}
	return &store.FinalizePaymentResult{Payment: s.payment, Claimed: s.claimed}, nil
}

func newSettlementService(repo store.Repository) *Service {
	return NewService(repo, nil, nil, NoopLocker{})
}

func TestProcessProviderEvent_RejectsNonTerminal(t *testing.T) {
	svc := newSettlementService(&settlementRepoStub{})

	_, err := svc.ProcessProviderEvent(context.Background(), &domain.ProviderEvent{
		Provider:  domain.ProviderPaystack,
		EventType: "transfer.success",
		Reference: "PF-1",
	})
	if !errors.Is(err, ErrEventNotTerminal) {
		t.Fatalf("expected ErrEventNotTerminal, got %v", err)
	}
}

func TestProcessProviderEvent_RequiresReference(t *testing.T) {
	svc := newSettlementService(&settlementRepoStub{})

	_, err := svc.ProcessProviderEvent(context.Background(), &domain.ProviderEvent{
		Provider: domain.ProviderPaystack,
		Terminal: true,
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessProviderEvent_AppliesSuccess(t *testing.T) {
	repo := &settlementRepoStub{
		payment: &domain.PlatformPayment{ID: uuid.New(), Status: domain.PaymentInitiated},
		claimed: true,
	}
	svc := newSettlementService(repo)

	result, err := svc.ProcessProviderEvent(context.Background(), &domain.ProviderEvent{
		Provider:  domain.ProviderPaystack,
		EventType: "charge.success",
		Reference: "PF-1",
		Succeeded: true,
		Terminal:  true,
	})
	if err != nil {
		t.Fatalf("ProcessProviderEvent returned error: %v", err)
	}
	if !result.Applied {
		t.Fatal("expected outcome to be applied")
	}
	if result.Outcome != domain.PaymentSuccessful {
		t.Fatalf("expected successful outcome, got %s", result.Outcome)
	}
	if !repo.finalizeParams.Succeeded {
		t.Fatal("expected finalize to be driven with success")
	}
}

func TestProcessProviderEvent_RedeliverySameOutcomeIsNoop(t *testing.T) {
	repo := &settlementRepoStub{
		payment: &domain.PlatformPayment{ID: uuid.New(), Status: domain.PaymentSuccessful},
		claimed: false,
	}
	svc := newSettlementService(repo)

	result, err := svc.ProcessProviderEvent(context.Background(), &domain.ProviderEvent{
		Reference: "PF-1",
		Succeeded: true,
		Terminal:  true,
	})
	if err != nil {
		t.Fatalf("expected redelivery to be treated as success, got %v", err)
	}
	if result.Applied {
		t.Fatal("expected no state change on redelivery")
	}
	if result.Outcome != domain.PaymentSuccessful {
		t.Fatalf("expected stored outcome, got %s", result.Outcome)
	}
}

func TestProcessProviderEvent_ConflictingOutcomeKeepsStoredState(t *testing.T) {
	repo := &settlementRepoStub{
		payment: &domain.PlatformPayment{ID: uuid.New(), Status: domain.PaymentSuccessful},
		claimed: false,
	}
	svc := newSettlementService(repo)

	result, err := svc.ProcessProviderEvent(context.Background(), &domain.ProviderEvent{
		Reference: "PF-1",
		Succeeded: false,
		Terminal:  true,
	})
	if err != nil {
		t.Fatalf("expected conflicting outcome to be absorbed, got %v", err)
	}
	if result.Applied {
		t.Fatal("expected stored state to be untouched")
	}
	if result.Outcome != domain.PaymentSuccessful {
		t.Fatalf("expected stored outcome to win, got %s", result.Outcome)
	}
}

func TestVerifyPaymentByReference_FailedStatusRecordsReason(t *testing.T) {
	repo := &settlementRepoStub{
		payment: &domain.PlatformPayment{
			ID:               uuid.New(),
			PaymentReference: "PF-1",
			Provider:         domain.ProviderPaystack,
			Status:           domain.PaymentInitiated,
		},
		claimed: true,
	}
	svc := NewService(repo, nil, &providerGatewayStub{status: "declined"}, NoopLocker{})

	result, err := svc.VerifyPaymentByReference(context.Background(), "PF-1")
	if err != nil {
		t.Fatalf("VerifyPaymentByReference returned error: %v", err)
	}
	if result.Outcome != domain.PaymentFailed {
		t.Fatalf("expected failed outcome, got %s", result.Outcome)
	}
	if repo.finalizeParams.FailureReason == nil || !strings.Contains(*repo.finalizeParams.FailureReason, "declined") {
		t.Fatalf("expected the provider status in the failure reason, got %v", repo.finalizeParams.FailureReason)
	}
	if repo.finalizeParams.DegradedTrust {
		t.Fatal("expected a server-to-server lookup not to be degraded trust")
	}
}

func TestInitiatePayment_ValidatesProvider(t *testing.T) {
	svc := newSettlementService(&settlementRepoStub{})

	_, err := svc.InitiatePayment(context.Background(), InitiatePaymentParams{
		TenantID:    uuid.New(),
		LedgerIDs:   []uuid.UUID{uuid.New()},
		Provider:    domain.Provider("cash"),
		TotalAmount: 1000,
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for unsupported provider, got %v", err)
	}
}
