package daemon_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"postgate/internal/daemon"
	"postgate/internal/logging"
	"postgate/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, err := daemon.New(cfg, daemon.RolePublisher, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := d.Start(); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceOfRoleRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	first, err := daemon.New(cfg, daemon.RolePublisher, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, daemon.RolePublisher, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = second.Start()
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected already running error, got %v", err)
	}

	other, err := daemon.New(cfg, daemon.RoleBot, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(); err != nil {
		t.Fatalf("different role should start: %v", err)
	}
	other.Stop()
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, err := daemon.New(cfg, daemon.RoleBot, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx, daemon.Service{Name: "wait", Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}})
	}()
	<-started
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if d.Status().Running {
		t.Fatal("expected lock released after Run")
	}
}

func TestRunFailingServiceStopsOthers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, err := daemon.New(cfg, daemon.RoleDashboard, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	boom := errors.New("listen failed")
	err = d.Run(context.Background(),
		daemon.Service{Name: "server", Run: func(context.Context) error { return boom }},
		daemon.Service{Name: "health", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected service error, got %v", err)
	}
}
