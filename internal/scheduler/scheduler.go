package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/config"
	"github.com/banjarejo/greensmart/internal/repository/sheets"
	"github.com/banjarejo/greensmart/internal/service/reporting"
	"github.com/banjarejo/greensmart/pkg/clients/webhook"
)

// Scheduler runs the daily ledger summary job: compute the totals, push them
// to the operator channel, and mirror them to the spreadsheet when one is
// configured.
type Scheduler struct {
	cron         *cron.Cron
	reportingSvc *reporting.Service
	notifier     webhook.Notifier
	mirror       sheets.Mirror
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance. mirror may be nil when the
// spreadsheet is not configured.
func NewScheduler(cfg config.Config, reportingSvc *reporting.Service, notifier webhook.Notifier, mirror sheets.Mirror, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:         cron.New(),
		reportingSvc: reportingSvc,
		notifier:     notifier,
		mirror:       mirror,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers the summary job and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Reporting.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.publishDailySummary); err != nil {
		s.logger.Error("failed to schedule daily summary", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) publishDailySummary() {
	s.logger.Info("generating daily summary")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := s.reportingSvc.DailySummary(ctx, s.cfg.Auth.UserID, time.Now())
	if err != nil {
		s.logger.Error("failed to compute daily summary", zap.Error(err))
		return
	}

	if err := s.notifier.Notify(ctx, s.reportingSvc.Format(summary)); err != nil {
		s.logger.Error("failed to post daily summary", zap.Error(err))
	}

	if s.mirror != nil {
		if err := s.mirror.AppendSummary(ctx, s.reportingSvc.Row(summary)); err != nil {
			s.logger.Error("failed to mirror daily summary", zap.Error(err))
		}
	}
}
