package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLifecycleRunnerDrainsOnCancel(t *testing.T) {
	var started, stopped, drained bool
	r := NewLifecycleRunner(DrainerFunc(func(ctx context.Context) error {
		drained = true
		return nil
	}), Hooks{
		OnStart: func(ctx context.Context) error { started = true; return nil },
		OnStop:  func() { stopped = true },
	}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
	if !started || !drained || !stopped {
		t.Fatalf("hooks not run: started=%v drained=%v stopped=%v", started, drained, stopped)
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", r.State())
	}
}

func TestLifecycleRunnerStartFailure(t *testing.T) {
	boom := errors.New("listen failed")
	r := NewLifecycleRunner(nil, Hooks{
		OnStart: func(ctx context.Context) error { return boom },
	}, Options{})
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestLifecycleRunnerFailStopsRun(t *testing.T) {
	boom := errors.New("server crashed")
	var r *LifecycleRunner
	r = NewLifecycleRunner(nil, Hooks{
		OnStart: func(ctx context.Context) error {
			go r.Fail(boom)
			return nil
		},
	}, Options{})
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected failure, got %v", err)
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	r := NewLifecycleRunner(DrainerFunc(func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}), Hooks{}, Options{DrainTimeout: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}

func TestLifecycleRunnerRunTwice(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, Options{})
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected run after stop to fail")
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "TEST")
	if !strings.Contains(buf.String(), "Version: "+Version) {
		t.Fatalf("unexpected banner: %q", buf.String())
	}
}
