package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"postgate/internal/config"
	"postgate/internal/logging"
)

// Roles run as separate processes sharing the queue root.
const (
	RoleBot       = "bot"
	RolePublisher = "publisher"
	RoleDashboard = "dashboard"
)

// Service is one blocking component of a role. Run returns when ctx is done.
type Service struct {
	Name string
	Run  func(context.Context) error
}

// Daemon coordinates a role's services and enforces single-instance execution.
type Daemon struct {
	role   string
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	started atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	Role         string
	Running      bool
	Uptime       time.Duration
	LockFilePath string
}

// New constructs a daemon for role. The lock lives at <queue root>/<role>.lock.
func New(cfg *config.Config, role string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || role == "" {
		return nil, errors.New("daemon requires config and role")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Queue.Path, role+".lock")
	return &Daemon{
		role:     role,
		logger:   logger.With(logging.String(logging.FieldRole, role)),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the role lock.
func (d *Daemon) Start() error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another postgate %s instance is already running", d.role)
	}

	d.started.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("postgate role started", logging.String("lock", d.lockPath))
	return nil
}

// Stop releases the role lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release role lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("postgate role stopped")
}

// Run acquires the lock, runs services until ctx is done or one of them
// fails, and releases the lock. Cancellation is a clean exit.
func (d *Daemon) Run(ctx context.Context, services ...Service) error {
	if len(services) == 0 {
		return errors.New("daemon requires at least one service")
	}
	if err := d.Start(); err != nil {
		return err
	}
	defer d.Stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			d.logger.Debug("service starting", logging.String("service", svc.Name))
			if err := svc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("service failed",
					logging.String("service", svc.Name),
					logging.Error(err),
					logging.String(logging.FieldEventType, "service_failed"),
					logging.String(logging.FieldImpact, "role shutting down"),
				)
				return fmt.Errorf("%s: %w", svc.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Role:         d.role,
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		status.Uptime = time.Since(time.Unix(0, d.started.Load()))
	}
	return status
}
