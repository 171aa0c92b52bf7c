/**
 * @description
 * Dispute and waiver workflow: tenant-raised disputes against open fee
 * ledger entries and their administrative resolution.
 */
package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
)

// CreateDisputeParams is a tenant's challenge against open fee entries.
type CreateDisputeParams struct {
	TenantID        uuid.UUID              `json:"tenant_id"`
	LedgerIDs       []uuid.UUID            `json:"ledger_ids"`
	Reason          string                 `json:"dispute_reason"`
	RequestedAction domain.RequestedAction `json:"requested_action"`
	RequestedAmount *int64                 `json:"requested_amount,omitempty"`
}

// CreateDispute validates and opens a dispute. Only pending or billed
// entries can be disputed; a reduce request must name an amount within the
// disputed fee total.
func (s *Service) CreateDispute(ctx context.Context, params CreateDisputeParams) (*domain.Dispute, error) {
	if len(params.LedgerIDs) == 0 {
		return nil, &domain.ValidationError{Field: "ledger_ids", Reason: "at least one entry is required"}
	}
	if strings.TrimSpace(params.Reason) == "" {
		return nil, &domain.ValidationError{Field: "dispute_reason", Reason: "a dispute reason is required"}
	}

	switch params.RequestedAction {
	case domain.ActionWaive, domain.ActionReview:
	case domain.ActionReduce:
		entries, err := s.repo.FindLedgerEntries(ctx, params.LedgerIDs)
		if err != nil {
			return nil, err
		}
		var feeTotal int64
		for _, entry := range entries {
			feeTotal += entry.FeeAmount
		}
		if params.RequestedAmount == nil || *params.RequestedAmount <= 0 || *params.RequestedAmount > feeTotal {
			return nil, &domain.ValidationError{
				Field:  "requested_amount",
				Reason: "must be positive and no more than the disputed fee total",
			}
		}
	default:
		return nil, &domain.ValidationError{Field: "requested_action", Reason: "must be waive, reduce or review"}
	}

	dispute := &domain.Dispute{
		TenantID:        params.TenantID,
		LedgerIDs:       params.LedgerIDs,
		DisputeReason:   params.Reason,
		RequestedAction: params.RequestedAction,
		RequestedAmount: params.RequestedAmount,
	}
	if err := s.repo.CreateDispute(ctx, dispute); err != nil {
		return nil, err
	}
	return dispute, nil
}

// ListDisputes lists a tenant's disputes.
func (s *Service) ListDisputes(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.Dispute, error) {
	return s.repo.ListDisputesByTenant(ctx, tenantID, limit)
}

// ResolveDispute records an administrative decision on an open dispute. An
// approved waive dispute also waives the disputed entries, carrying the
// dispute reason into the waiver so the tenant sees why.
func (s *Service) ResolveDispute(ctx context.Context, disputeID uuid.UUID, approve bool, notes string, resolvedBy string) (*domain.Dispute, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, &domain.ValidationError{Field: "resolution_notes", Reason: "resolution notes are required"}
	}

	status := domain.DisputeRejected
	if approve {
		status = domain.DisputeApproved
	}

	dispute, err := s.repo.ResolveDispute(ctx, disputeID, status, notes, resolvedBy, s.now())
	if err != nil {
		return nil, err
	}

	if approve && dispute.RequestedAction == domain.ActionWaive {
		if err := s.repo.WaiveLedgerEntries(ctx, dispute.LedgerIDs, dispute.DisputeReason, &notes, s.now()); err != nil {
			return dispute, err
		}
	}
	return dispute, nil
}
