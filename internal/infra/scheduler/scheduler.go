package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task is one periodic unit of work. It returns how many items it handled.
type Task interface {
	Run(ctx context.Context) (int, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) (int, error)

func (f TaskFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

// Scheduler periodically runs a Task.
type Scheduler struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	task     Task
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler runs task every interval, each run bounded by timeout.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(name string, interval time.Duration, task Task, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Str("task", name).Logger()
	return &Scheduler{
		name:     name,
		interval: interval,
		timeout:  30 * time.Second,
		task:     task,
		log:      &l,
		done:     make(chan struct{}),
	}
}

// Start begins the loop in a background goroutine; calling it twice has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(parentCtx)
	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("started")
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	n, err := s.task.Run(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("run failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("handled", n).Msg("run finished")
	}
}

// Stop cancels the loop and waits for it to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("stopped")
}
