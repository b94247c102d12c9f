package jobs

import (
	"context"
	"time"

	"winledger/config"
	"winledger/observability"
	"winledger/services"
	tasks "winledger/task"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	vestingSweepJob = "vesting-unlock"
	mgmSweepJob     = "mgm-accrual"
	cleanupJob      = "cleanup"

	sweepTTL = 10 * time.Minute
)

type Scheduler struct {
	cron   *cron.Cron
	engine *services.Engine
	cfg    *config.Config
	log    *zap.Logger
}

// NewScheduler registers every background job. Nothing runs until Start.
func NewScheduler(e *services.Engine, cfg *config.Config, log *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Warn("invalid SCHEDULER_TZ, using UTC", zap.String("tz", cfg.Scheduler.Timezone), zap.Error(err))
		loc = time.UTC
	}

	cronLog := cron.VerbosePrintfLogger(zap.NewStdLog(log.Named("cron")))
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		engine: e,
		cfg:    cfg,
		log:    log.Named("jobs"),
	}

	if _, err := s.cron.AddFunc(cfg.Scheduler.SettlementCron, s.runSettlement); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("@hourly", s.locked(vestingSweepJob, s.sweepVesting)); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("15 * * * *", s.locked(mgmSweepJob, s.sweepMGM)); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("30 3 * * *", s.locked(cleanupJob, func(ctx context.Context) error {
		return tasks.Cleanup(ctx, s.engine)
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", zap.String("settlement_cron", s.cfg.Scheduler.SettlementCron))
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

// runSettlement relies on the settlement lease taken inside CreateSettlement.
func (s *Scheduler) runSettlement() {
	start := time.Now()
	res, err := s.engine.CreateSettlement(context.Background(), services.TriggerSchedule)
	if err != nil {
		observability.JobRuns.WithLabelValues("settlement", "error").Inc()
		s.log.Error("scheduled settlement failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}

	observability.JobRuns.WithLabelValues("settlement", "ok").Inc()
	fields := []zap.Field{
		zap.String("message", res.Message),
		zap.Int("skipped_users", len(res.SkippedUsers)),
		zap.Duration("duration", time.Since(start)),
	}
	if res.Proposal != nil {
		fields = append(fields, zap.String("settlement_id", res.Proposal.ID), zap.Int("users_count", res.Proposal.UsersCount))
	}
	for _, sk := range res.SkippedUsers {
		s.log.Warn("user skipped by settlement", zap.Uint("user_id", sk.UserID), zap.String("reason", sk.Reason))
	}
	s.log.Info("scheduled settlement finished", fields...)
}

func (s *Scheduler) sweepVesting(ctx context.Context) error {
	n, err := s.engine.PromoteAllVesting(ctx)
	if err != nil {
		return err
	}
	s.log.Info("vesting sweep finished", zap.Int64("unlocked", n))
	return nil
}

func (s *Scheduler) sweepMGM(ctx context.Context) error {
	n, err := s.engine.SweepMGM(ctx)
	if err != nil {
		return err
	}
	s.log.Info("mgm sweep finished", zap.Int("expired", n))
	return nil
}

// locked wraps fn in a cluster-wide lease so only one instance runs it.
func (s *Scheduler) locked(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTTL)
		defer cancel()

		ran, err := s.engine.WithJobLock(ctx, name, sweepTTL, fn)
		switch {
		case err != nil:
			observability.JobRuns.WithLabelValues(name, "error").Inc()
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		case !ran:
			observability.JobRuns.WithLabelValues(name, "skipped").Inc()
			s.log.Debug("job lease held elsewhere", zap.String("job", name))
		default:
			observability.JobRuns.WithLabelValues(name, "ok").Inc()
		}
	}
}
