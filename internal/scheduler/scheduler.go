// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	bus  *events.Bus
	log  zerolog.Logger

	mu      sync.RWMutex
	jobs    []string
	running bool
}

// New creates a new scheduler
func New(bus *events.Bus, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		bus:  bus,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.log.Info().Int("jobs", len(s.JobNames())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Info().Msg("Scheduler stopped")
}

// Running reports whether the scheduler has been started
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// JobNames lists the registered jobs
func (s *Scheduler) JobNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.jobs...)
}

// AddJob registers a job with a cron schedule (seconds field included).
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "0 0 6 * * *"        - 6 AM daily
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job.Name())
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// runJob executes one job, recovering panics so a broken job cannot take
// down the cron goroutine
func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in job %s: %v", job.Name(), r)
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job panicked")
			if s.bus != nil {
				s.bus.EmitError("scheduler", err, map[string]interface{}{"job": job.Name()})
			}
		}
	}()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		if s.bus != nil {
			s.bus.EmitError("scheduler", err, map[string]interface{}{"job": job.Name()})
		}
		return
	}

	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}
