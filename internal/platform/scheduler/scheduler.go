// Package scheduler runs the engine's background work: periodic tasks on
// tickers and long-running workers, with one Start/Stop lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Task is a unit of background work. A positive Interval runs Run on a
// ticker; a zero Interval runs it once as a long-lived worker that should
// return when ctx is cancelled.
type Task struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler owns a fixed set of tasks.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var ErrRunning = errors.New("scheduler already running")

// Add registers a task. Tasks cannot be added while running.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("task requires a name and a run function")
	}
	if t.Interval < 0 {
		return fmt.Errorf("task %s: negative interval", t.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start launches every task. Tasks stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, t := range s.tasks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if t.Interval == 0 {
				s.runOnce(ctx, t)
				return
			}
			s.loop(ctx, t)
		}()
	}
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	return nil
}

// Stop cancels all tasks and waits for them to return. Safe to call twice.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	if t.RunOnStart {
		s.runOnce(ctx, t)
	}
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// runOnce executes a task, containing panics so one task cannot take down the others.
func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				"task", t.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := time.Now()
	err := t.Run(ctx)
	switch {
	case err == nil:
		s.logger.Debug("scheduled task completed", "task", t.Name, "duration", time.Since(start))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		s.logger.Error("scheduled task failed", "task", t.Name, "error", err)
	}
}
