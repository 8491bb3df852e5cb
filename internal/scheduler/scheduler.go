// Package scheduler runs recurring jobs on fixed intervals. Each task has its
// own loop and its own cancel so stopping one never delays another.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"postgate/internal/logging"
)

// Common errors
var (
	ErrAlreadyRunning = errors.New("scheduler is already running")
	ErrTaskNotFound   = errors.New("task not found")
)

// Task is one recurring job. A run never overlaps the previous run of the
// same task; the next tick is measured from the end of the previous run.
type Task struct {
	Name      string
	Interval  time.Duration
	Run       func(context.Context) error
	Immediate bool
}

// Scheduler owns a set of tasks.
type Scheduler struct {
	tasks  []Task
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancels map[string]context.CancelFunc
}

// New builds a scheduler for tasks.
func New(logger *slog.Logger, tasks ...Task) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if task.Name == "" || task.Run == nil {
			return nil, errors.New("scheduler task requires name and run function")
		}
		if task.Interval <= 0 {
			return nil, fmt.Errorf("scheduler task %q requires a positive interval", task.Name)
		}
		if _, dup := seen[task.Name]; dup {
			return nil, fmt.Errorf("duplicate scheduler task %q", task.Name)
		}
		seen[task.Name] = struct{}{}
	}
	return &Scheduler{
		tasks:   tasks,
		logger:  logging.NewComponentLogger(logger, "scheduler"),
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// Run starts every task and blocks until ctx is done and all loops exit.
// Task errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range s.tasks {
		taskCtx, cancel := context.WithCancel(gctx)
		s.cancels[task.Name] = cancel
		g.Go(func() error {
			defer cancel()
			s.loop(taskCtx, task)
			return nil
		})
	}
	s.mu.Unlock()

	err := g.Wait()

	s.mu.Lock()
	s.running = false
	clear(s.cancels)
	s.mu.Unlock()
	return err
}

// Cancel stops a single task. The other tasks keep running.
func (s *Scheduler) Cancel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[name]
	if !ok {
		return ErrTaskNotFound
	}
	cancel()
	delete(s.cancels, name)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	logger := s.logger.With(logging.String("task", task.Name))
	logger.Debug("scheduler task started", logging.Duration("interval", task.Interval))
	defer logger.Debug("scheduler task stopped")

	if task.Immediate {
		s.runOnce(ctx, logger, task)
	}
	timer := time.NewTimer(task.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.runOnce(ctx, logger, task)
		timer.Reset(task.Interval)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, logger *slog.Logger, task Task) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler task panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "task_panic"),
			)
		}
	}()
	if err := task.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("scheduler task failed; retrying next interval",
			logging.Error(err),
			logging.String(logging.FieldEventType, "task_failed"),
			logging.String(logging.FieldErrorHint, "see preceding errors for the failing component"),
		)
	}
}
