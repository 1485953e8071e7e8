package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/interviewer/pkg/logging"
)

var ErrDrainTimeout = errors.New("drain timeout")

type Options struct {
	// Title is printed as a banner on Run; empty disables the banner.
	Title        string
	BannerOut    io.Writer
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

type LifecycleRunner struct {
	state    int32
	cancel   context.CancelFunc
	mu       sync.Mutex
	onceStop sync.Once
	hooks    Hooks
	drainer  Drainer
	opts     Options
	logger   *slog.Logger
	failErr  error
	stopErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, opts Options) *LifecycleRunner {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleRunner{
		state:   int32(StateNew),
		hooks:   hooks,
		drainer: drainer,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "runner"),
	}
}

// Run starts the hooks and blocks until ctx is cancelled, Stop is called or
// Fail reports a fatal error. It then drains and returns the first failure.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return errors.New("invalid state transition")
	}
	if r.opts.Title != "" && r.opts.BannerOut != nil {
		PrintBanner(r.opts.BannerOut, r.opts.Title)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	if r.hooks.OnStart != nil {
		if err := r.hooks.OnStart(runCtx); err != nil {
			r.Fail(err)
		}
	}
	r.setState(StateRunning)
	r.logger.Info("runner_started")
	<-runCtx.Done()
	return r.stop()
}

// Stop cancels a running runner and waits for the drain.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.stop()
}

// Fail records err as the reason for stopping and cancels the run.
func (r *LifecycleRunner) Fail(err error) {
	r.mu.Lock()
	if r.failErr == nil {
		r.failErr = err
	}
	cancel := r.cancel
	r.mu.Unlock()
	r.logger.Error("runner_failed", slog.String("error", err.Error()))
	if cancel != nil {
		cancel()
	}
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		r.logger.Info("runner_draining", slog.Duration("timeout", r.opts.DrainTimeout))
		if r.drainer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.DrainTimeout)
			done := make(chan error, 1)
			go func() { done <- r.drainer.Drain(ctx) }()
			select {
			case err := <-done:
				if err != nil {
					r.stopErr = err
				}
			case <-ctx.Done():
				r.stopErr = ErrDrainTimeout
			}
			cancel()
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
		r.logger.Info("runner_stopped")
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
