/**
 * @description
 * Reconciliation matching: linking externally reported provider transactions
 * to internally recorded platform payments. Covers manual matching, the
 * auto-match sweep, CSV statement import and provider API sync.
 */
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/waspershola/hospitech-nexus-sub003/internal/domain"
	"github.com/waspershola/hospitech-nexus-sub003/internal/store"
)

// ErrAutoMatchRunning is returned when an auto-match sweep is already in
// flight for the tenant.
var ErrAutoMatchRunning = errors.New("auto-match already running for tenant")

const autoMatchLockTTL = 2 * time.Minute

// ManualMatch links one reconciliation record to one internal payment. The
// record's status reflects how the amounts compare: equal within tolerance
// is matched, internal short of external is partial, internal above is
// overpaid.
func (s *Service) ManualMatch(ctx context.Context, recordID, paymentID uuid.UUID) (*domain.ReconciliationRecord, error) {
	record, err := s.repo.FindReconciliationRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	outcome := domain.MatchOutcome(record.Amount, payment.TotalAmount)
	if err := s.repo.LinkRecordToPayment(ctx, recordID, paymentID, outcome, s.now()); err != nil {
		return nil, err
	}
	return s.repo.FindReconciliationRecord(ctx, recordID)
}

// AutoMatch sweeps a tenant's unmatched records and links each to an
// unlinked payment of equal amount. When several payments qualify the
// earliest-created one wins. The sweep holds a tenant-scoped lock so two
// concurrent runs cannot link the same payment to different records.
func (s *Service) AutoMatch(ctx context.Context, tenantID uuid.UUID) (*domain.AutoMatchResult, error) {
	release, acquired, err := s.locker.Acquire(ctx, "recon_auto_match", tenantID, autoMatchLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAutoMatchRunning
	}
	defer release()

	records, err := s.repo.ListUnmatchedRecords(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &domain.AutoMatchResult{Evaluated: len(records)}
	for _, record := range records {
		candidates, err := s.repo.FindCandidatePayments(ctx, tenantID, record.Amount, domain.AmountEpsilon)
		if err != nil {
			return result, err
		}
		if len(candidates) == 0 {
			result.Skipped++
			continue
		}

		// Candidates arrive earliest-created first; the head is the
		// deterministic tie-break.
		linked := false
		for _, candidate := range candidates {
			err := s.repo.LinkRecordToPayment(ctx, record.ID, candidate.ID, domain.ReconMatched, s.now())
			if err == nil {
				linked = true
				break
			}
			if errors.Is(err, store.ErrPaymentLinked) {
				continue
			}
			return result, err
		}
		if linked {
			result.Matched++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

// ImportCSV ingests a plain-text statement: a header row, then
// `reference,amount,date` per line. Fields are comma-delimited with no
// escaping, so embedded commas are not supported (a known limitation of the
// statement format). A malformed row is reported and skipped; it never
// aborts the rest of the import.
func (s *Service) ImportCSV(ctx context.Context, tenantID uuid.UUID, input io.Reader) (*domain.CSVImportResult, error) {
	result := &domain.CSVImportResult{}
	scanner := bufio.NewScanner(input)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if line == 1 || raw == "" {
			continue
		}

		record, rowErr := parseStatementRow(raw)
		if rowErr != nil {
			result.Rejected = append(result.Rejected, domain.CSVRowError{Line: line, Reason: rowErr.Error()})
			continue
		}

		record.TenantID = tenantID
		record.Source = domain.ReconSourceCSV
		if err := s.repo.InsertReconciliationRecord(ctx, record); err != nil {
			result.Rejected = append(result.Rejected, domain.CSVRowError{Line: line, Reason: err.Error()})
			continue
		}
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}
	return result, nil
}

var statementDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

func parseStatementRow(raw string) (*domain.ReconciliationRecord, error) {
	fields := strings.Split(raw, ",")
	if len(fields) < 3 {
		return nil, fmt.Errorf("expected 3 fields (reference,amount,date), got %d", len(fields))
	}

	reference := strings.TrimSpace(fields[0])
	if reference == "" {
		return nil, errors.New("reference is empty")
	}

	amountMajor, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("malformed amount %q", strings.TrimSpace(fields[1]))
	}
	amount := int64(math.Round(amountMajor * 100))

	var txDate *time.Time
	rawDate := strings.TrimSpace(fields[2])
	for _, layout := range statementDateLayouts {
		if parsed, err := time.Parse(layout, rawDate); err == nil {
			txDate = &parsed
			break
		}
	}
	if txDate == nil {
		return nil, fmt.Errorf("malformed date %q", rawDate)
	}

	return &domain.ReconciliationRecord{
		Reference:       reference,
		Amount:          amount,
		TransactionDate: txDate,
	}, nil
}

// ProviderSync pulls provider-reported transactions for a date window,
// upserts them as reconciliation records and runs an auto-match sweep over
// the result.
func (s *Service) ProviderSync(ctx context.Context, tenantID uuid.UUID, provider domain.Provider, start, end time.Time) (*domain.AutoMatchResult, error) {
	if !end.After(start) {
		return nil, &domain.ValidationError{Field: "window", Reason: "end must be after start"}
	}

	transactions, err := s.providers.ListTransactions(ctx, provider, start, end)
	if err != nil {
		return nil, fmt.Errorf("provider sync failed: %w", err)
	}

	for _, tx := range transactions {
		date := tx.Date
		record := &domain.ReconciliationRecord{
			TenantID:        tenantID,
			Reference:       tx.Reference,
			Amount:          tx.Amount,
			TransactionDate: &date,
			Source:          string(provider),
		}
		if err := s.repo.UpsertProviderRecord(ctx, record); err != nil {
			if errors.Is(err, store.ErrRecordMatched) {
				// Already reconciled on an earlier sync; nothing to refresh.
				continue
			}
			log.Printf("WARN: failed to upsert provider record %s: %v", tx.Reference, err)
		}
	}

	return s.AutoMatch(ctx, tenantID)
}

// GetReconciliationSummary reports the tenant's match statistics. The match
// rate is defined (0%) even when no records exist.
func (s *Service) GetReconciliationSummary(ctx context.Context, tenantID uuid.UUID) (*domain.ReconciliationSummary, error) {
	return s.repo.GetReconciliationSummary(ctx, tenantID)
}

// ListUnmatchedRecords exposes a tenant's unmatched records.
func (s *Service) ListUnmatchedRecords(ctx context.Context, tenantID uuid.UUID) ([]domain.ReconciliationRecord, error) {
	return s.repo.ListUnmatchedRecords(ctx, tenantID)
}
