// Package scheduler runs recurring jobs on the main instance only. Jobs are
// contributed to the scheduled-jobs collection by composers; the scheduler
// component starts them when the runtime reaches LevelRun while holding
// MainDom, and stops them as soon as another instance asks for MainDom.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/bootstrap"
	"github.com/GoCodeAlone/bootstrap/maindom"
)

// Static errors for scheduler package
var (
	ErrInvalidJob      = errors.New("invalid scheduled job")
	ErrNotAJob         = errors.New("collection item is not a scheduled job")
	ErrInvalidSchedule = errors.New("invalid job schedule")
)

// Job is a recurring unit of work.
type Job struct {
	Name string
	// Schedule is a cron expression with an optional seconds field, or a
	// descriptor such as @hourly or @every 5m.
	Schedule string
	Run      func(ctx context.Context) error
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler is the component running Jobs.
type Scheduler struct {
	state   *bootstrap.RuntimeState
	mainDom *maindom.MainDom
	logger  bootstrap.Logger
	jobs    []Job

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
	running bool
}

// New creates a scheduler for jobs.
func New(state *bootstrap.RuntimeState, mainDom *maindom.MainDom, logger bootstrap.Logger, jobs ...Job) (*Scheduler, error) {
	for _, job := range jobs {
		if job.Name == "" || job.Run == nil {
			return nil, fmt.Errorf("%w: %q needs a name and a run function", ErrInvalidJob, job.Name)
		}
		if _, err := parser.Parse(job.Schedule); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, job.Name, err)
		}
	}
	return &Scheduler{
		state:   state,
		mainDom: mainDom,
		logger:  logger,
		jobs:    jobs,
		entries: make(map[string]cron.EntryID),
	}, nil
}

// Initialize starts the jobs if this process is the main instance of a
// running application. Otherwise the scheduler stays idle.
func (s *Scheduler) Initialize(ctx context.Context) error {
	if level := s.state.Level(); level != bootstrap.LevelRun {
		s.logger.Info("Scheduler idle, runtime not running", "level", level)
		return nil
	}
	if s.mainDom == nil || !s.mainDom.IsMainDom() {
		s.logger.Info("Scheduler idle, not the main instance")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cronLogger := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	for _, job := range s.jobs {
		id, err := c.AddFunc(job.Schedule, s.runner(jobCtx, job))
		if err != nil {
			cancel()
			return fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, job.Name, err)
		}
		s.entries[job.Name] = id
	}

	s.mainDom.OnHandoffRequested(func() {
		if err := s.stop(context.Background()); err != nil {
			s.logger.Warn("Scheduler did not stop cleanly on handoff", "error", err)
		}
	})

	s.cron, s.cancel, s.running = c, cancel, true
	c.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

func (s *Scheduler) runner(ctx context.Context, job Job) func() {
	return func() {
		s.logger.Debug("Running scheduled job", "job", job.Name)
		if err := job.Run(ctx); err != nil {
			s.logger.Error("Scheduled job failed", "job", job.Name, "error", err)
		}
	}
}

// Terminate stops the jobs and waits for running ones until ctx is done.
func (s *Scheduler) Terminate(ctx context.Context) error {
	return s.stop(ctx)
}

func (s *Scheduler) stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c, cancel := s.cron, s.cancel
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()

	cancel()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Running reports whether jobs are scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name
	}
	return names
}

// cronLogger adapts the runtime logger to cron.Logger.
type cronLogger struct{ logger bootstrap.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
