/**
 * @description
 * Cron scheduler for the periodic ledger jobs: the deferred billing run,
 * alert rule evaluation and the reconciliation auto-match sweep.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/waspershola/hospitech-nexus-sub003/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  *slog.Logger
	config  config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(service *Service, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:    c,
		service: service,
		logger:  logger,
		config:  cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.register(s.config.DeferredBillingSchedule, "deferred billing run", s.runDeferredBilling)
	s.register(s.config.AlertEvaluationSchedule, "alert evaluation", s.runAlertEvaluation)
	s.register(s.config.AutoMatchSchedule, "reconciliation auto-match", s.runAutoMatch)
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) register(schedule, name string, job func()) {
	if schedule == "" {
		s.logger.Info("job disabled, no schedule configured", "job", name)
		return
	}
	if _, err := s.cron.AddFunc(schedule, job); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
}

func (s *Scheduler) runDeferredBilling() {
	ctx := context.Background()
	promoted, err := s.service.RunDeferredBilling(ctx)
	if err != nil {
		s.logger.Error("deferred billing run failed", "error", err)
		return
	}
	s.logger.Info("deferred billing run finished", "promoted", promoted)
}

func (s *Scheduler) runAlertEvaluation() {
	ctx := context.Background()
	result, err := s.service.EvaluateAlertRules(ctx)
	if err != nil {
		s.logger.Error("alert evaluation failed", "error", err)
		return
	}
	s.logger.Info("alert evaluation finished",
		"rules_evaluated", result.RulesEvaluated, "alerts_raised", result.AlertsRaised)
}

func (s *Scheduler) runAutoMatch() {
	ctx := context.Background()
	now := time.Now().UTC()

	tenantIDs, err := s.service.repo.ListBilledTenantIDs(ctx, now.AddDate(0, -1, 0), now)
	if err != nil {
		s.logger.Error("auto-match sweep could not list tenants", "error", err)
		return
	}

	for _, tenantID := range tenantIDs {
		result, err := s.service.AutoMatch(ctx, tenantID)
		if err != nil {
			if err == ErrAutoMatchRunning {
				continue
			}
			s.logger.Error("auto-match failed", "tenant_id", tenantID, "error", err)
			continue
		}
		if result.Matched > 0 {
			s.logger.Info("auto-match finished", "tenant_id", tenantID,
				"evaluated", result.Evaluated, "matched", result.Matched)
		}
	}
}
