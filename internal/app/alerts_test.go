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

type alertRepoStub struct {
	store.Repository

	rules         []domain.AlertRule
	billedTenants []uuid.UUID

	// settled amounts keyed by window start ordering: current first call,
	// comparison second.
	settledByCall []int64
	settledCalls  int
	outstanding   int64

	alerts   []domain.Alert
	enqueued []string
}

func (s *alertRepoStub) ListActiveAlertRules(ctx context.Context) ([]domain.AlertRule, error) {
	return s.rules, nil
}

func (s *alertRepoStub) ListBilledTenantIDs(ctx context.Context, start, end time.Time) ([]uuid.UUID, error) {
	return s.billedTenants, nil
}

func (s *alertRepoStub) SettledAmountForPeriod(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (int64, error) {
	if s.settledCalls >= len(s.settledByCall) {
		return 0, nil
	}
	value := s.settledByCall[s.settledCalls]
	s.settledCalls++
	return value, nil
}

func (s *alertRepoStub) OutstandingAmountAt(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	return s.outstanding, nil
}

func (s *alertRepoStub) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	alert.ID = uuid.New()
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *alertRepoStub) EnqueueOutbox(ctx context.Context, exchange, routingKey string, payload []byte) error {
	s.enqueued = append(s.enqueued, routingKey)
	return nil
}

func TestEvaluateAlertRules_PercentageDropRaisesAlert(t *testing.T) {
	tenantID := uuid.New()
	repo := &alertRepoStub{
		rules: []domain.AlertRule{{
			ID:             uuid.New(),
			TenantID:       &tenantID,
			Period:         domain.PeriodWeekly,
			Metric:         domain.MetricRevenue,
			ThresholdType:  domain.ThresholdPercentageDrop,
			ThresholdValue: 30,
		}},
		// current 50k, previous 100k: a 50% drop against a 30% threshold.
		settledByCall: []int64{50000, 100000},
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	result, err := svc.EvaluateAlertRules(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAlertRules returned error: %v", err)
	}
	if result.AlertsRaised != 1 {
		t.Fatalf("expected 1 alert, got %d", result.AlertsRaised)
	}
	if repo.alerts[0].Severity != domain.SeverityCritical {
		t.Fatalf("expected a 50%% drop at a 30%% threshold to be critical, got %s", repo.alerts[0].Severity)
	}
	if len(repo.enqueued) != 1 || repo.enqueued[0] != domain.RouteRevenueAlert {
		t.Fatalf("expected one revenue alert event, got %v", repo.enqueued)
	}
}

func TestEvaluateAlertRules_NoPreviousActivityIsQuiet(t *testing.T) {
	tenantID := uuid.New()
	repo := &alertRepoStub{
		rules: []domain.AlertRule{{
			ID:             uuid.New(),
			TenantID:       &tenantID,
			Period:         domain.PeriodDaily,
			Metric:         domain.MetricRevenue,
			ThresholdType:  domain.ThresholdPercentageDrop,
			ThresholdValue: 30,
		}},
		settledByCall: []int64{0, 0},
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	result, err := svc.EvaluateAlertRules(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAlertRules returned error: %v", err)
	}
	if result.AlertsRaised != 0 {
		t.Fatalf("expected no alert without a baseline, got %d", result.AlertsRaised)
	}
}

func TestEvaluateAlertRules_OutstandingAbsoluteThreshold(t *testing.T) {
	tenantID := uuid.New()
	repo := &alertRepoStub{
		rules: []domain.AlertRule{{
			ID:             uuid.New(),
			TenantID:       &tenantID,
			Period:         domain.PeriodMonthly,
			Metric:         domain.MetricOutstanding,
			ThresholdType:  domain.ThresholdAbsolute,
			ThresholdValue: 100000,
		}},
		outstanding: 150000,
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	result, err := svc.EvaluateAlertRules(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAlertRules returned error: %v", err)
	}
	if result.AlertsRaised != 1 {
		t.Fatalf("expected 1 alert, got %d", result.AlertsRaised)
	}
	if repo.alerts[0].CurrentValue != 150000 {
		t.Fatalf("expected current value on the alert, got %d", repo.alerts[0].CurrentValue)
	}
}

func TestEvaluateAlertRules_GlobalRuleFansOut(t *testing.T) {
	repo := &alertRepoStub{
		rules: []domain.AlertRule{{
			ID:             uuid.New(),
			Period:         domain.PeriodDaily,
			Metric:         domain.MetricOutstanding,
			ThresholdType:  domain.ThresholdAbsolute,
			ThresholdValue: 1000,
		}},
		billedTenants: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		outstanding:   5000,
	}
	svc := NewService(repo, nil, nil, NoopLocker{})

	result, err := svc.EvaluateAlertRules(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAlertRules returned error: %v", err)
	}
	if result.AlertsRaised != 3 {
		t.Fatalf("expected an alert per billed tenant, got %d", result.AlertsRaised)
	}
}

func TestSaveAlertRule_Validation(t *testing.T) {
	svc := NewService(&alertRepoStub{}, nil, nil, NoopLocker{})

	cases := []struct {
		name string
		rule domain.AlertRule
	}{
		{"bad period", domain.AlertRule{Period: "hourly", ThresholdType: domain.ThresholdAbsolute, ThresholdValue: 10}},
		{"bad threshold type", domain.AlertRule{Period: domain.PeriodDaily, ThresholdType: "relative", ThresholdValue: 10}},
		{"non-positive threshold", domain.AlertRule{Period: domain.PeriodDaily, ThresholdType: domain.ThresholdAbsolute, ThresholdValue: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SaveAlertRule(context.Background(), &tc.rule)
			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
