package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crm-alerts/internal/config"
	"crm-alerts/internal/engine"
	"crm-alerts/internal/fetcher"
	"crm-alerts/internal/scheduler"
	"crm-alerts/internal/storage"
)

// Service orchestrates fetching, evaluation, and snapshot persistence.
type Service struct {
	sched     *scheduler.Scheduler
	fetcher   fetcher.OpportunityFetcher
	engine    *engine.Engine
	snapshots storage.SnapshotStore
	logger    zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the watcher service.
func New(cfg *config.Config, sched *scheduler.Scheduler, f fetcher.OpportunityFetcher, eng *engine.Engine, snapshots storage.SnapshotStore, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	var lockKey int64
	if cfg != nil {
		lockKey = cfg.Scheduler.AdvisoryLockKey
	}

	return &Service{
		sched:     sched,
		fetcher:   f,
		engine:    eng,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "service").Logger(),
		locker:    locker,
		lockKey:   lockKey,
	}
}

// Run begins the evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, s.Evaluate)
}

// Evaluate executes a single evaluation kick: fetch the opportunity set, run
// a gated engine pass, and record the outcome.
func (s *Service) Evaluate(ctx context.Context) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Msg("skip evaluation because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	opps, err := s.fetcher.FetchOpportunities(ctx)
	if err != nil {
		return fmt.Errorf("fetch opportunities: %w", err)
	}
	if len(opps) == 0 {
		s.logger.Debug().Msg("no opportunities available; skipping evaluation")
		return nil
	}

	result, err := s.engine.Pass(ctx, opps)
	if err != nil {
		return err
	}
	if result.Skipped {
		s.logger.Debug().Str("reason", result.SkipReason).Msg("evaluation pass skipped")
		return nil
	}

	if s.snapshots != nil {
		snapshot := storage.PipelineSnapshot{
			CheckedAt:     time.Now().UTC(),
			ClosedRevenue: result.Summary.ClosedRevenue,
			OpenPipeline:  result.Summary.OpenPipeline,
			ValidCount:    result.Summary.ValidCount,
			AlertCount:    len(result.Retained),
		}
		if err := s.snapshots.UpsertSnapshot(ctx, snapshot); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist pipeline snapshot")
		}
	}

	s.logger.Info().
		Str("closed_revenue", result.Summary.ClosedRevenue.String()).
		Str("open_pipeline", result.Summary.OpenPipeline.String()).
		Int("valid_count", result.Summary.ValidCount).
		Int("new_alerts", len(result.NewAlerts)).
		Msg("evaluation pass recorded")

	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
