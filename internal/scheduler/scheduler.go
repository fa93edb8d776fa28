package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/config"
)

// Sweeper runs one due-selection-and-publish pass
type Sweeper interface {
	RunDue(ctx context.Context)
}

// Scheduler triggers periodic publish sweeps
type Scheduler struct {
	sweeper Sweeper
	config  *config.SchedulerConfig
	running atomic.Bool
	mu      sync.Mutex // prevents overlapping sweeps from this scheduler
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(sweeper Sweeper, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the scheduler with an initial delay before the first sweep,
// then periodic execution at the configured interval
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Scheduler is disabled")
		return
	}

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	log.Info().Dur("delay", s.config.InitialDelay).Msg("Scheduler starting with initial delay")

	select {
	case <-time.After(s.config.InitialDelay):
		s.executeSweep(ctx)
	case <-s.stopCh:
		log.Info().Msg("Scheduler stopped during initial delay")
		return
	case <-ctx.Done():
		log.Info().Msg("Scheduler context cancelled during initial delay")
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.config.Interval).Msg("Scheduler started periodic execution")

	for {
		select {
		case <-ticker.C:
			s.executeSweep(ctx)
		case <-s.stopCh:
			log.Info().Msg("Scheduler stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Scheduler context cancelled")
			return
		}
	}
}

// executeSweep runs a single sweep. A tick arriving while the previous sweep
// is still inside the remote poll loop is skipped rather than queued.
func (s *Scheduler) executeSweep(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Warn().Msg("Sweep already running, skipping this trigger")
		return
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	log.Debug().Msg("Starting scheduled sweep")

	s.sweeper.RunDue(ctx)

	log.Debug().
		Dur("duration", time.Since(startTime)).
		Msg("Scheduled sweep completed")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	close(s.stopCh)
	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

// IsRunning returns true if a sweep is currently executing
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}
