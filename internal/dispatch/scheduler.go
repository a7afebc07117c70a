// Package dispatch runs plan-and-deliver cycles on a cron schedule.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/simulation"
)

const defaultTimeout = time.Minute

// Dispatcher is the part of service.Service the scheduler drives.
type Dispatcher interface {
	Dispatch(ctx context.Context) (*domain.Plan, *simulation.Report, error)
}

type Scheduler struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	log        zerolog.Logger
	timeout    time.Duration
}

func NewScheduler(dispatcher Dispatcher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		dispatcher: dispatcher,
		log:        log,
		timeout:    defaultTimeout,
	}
}

// Start registers the cycle under spec (standard cron syntax or descriptors
// such as "@every 1m") and starts the cron runner.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.RunOnce(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", spec).Msg("dispatch scheduler started")
	return nil
}

// Stop stops the runner and waits for a running cycle until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info().Msg("dispatch scheduler stopped")
}

// RunOnce plans and delivers a single cycle. A cycle that collides with a
// running simulation is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	plan, report, err := s.dispatcher.Dispatch(ctx)
	if errors.Is(err, domain.ErrSimulationRunning) {
		s.log.Info().Msg("dispatch skipped, simulation running")
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("dispatch cycle failed")
		return err
	}
	s.log.Info().
		Int("assigned", plan.Assigned()).
		Int("unserved", len(plan.Unserved)).
		Int("deliveries", report.Deliveries).
		Float64("distance_km", report.TotalDistanceKm).
		Msg("dispatch cycle complete")
	return nil
}
