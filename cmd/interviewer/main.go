package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harunnryd/interviewer/pkg/console"
	"github.com/harunnryd/interviewer/pkg/interviewer"
	"github.com/harunnryd/interviewer/pkg/logging"
	"github.com/harunnryd/interviewer/pkg/metrics"
	"github.com/harunnryd/interviewer/pkg/observers"
	"github.com/harunnryd/interviewer/pkg/redact"
	"github.com/harunnryd/interviewer/pkg/runner"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML (built-in defaults when empty)")
	envPath := flag.String("env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintln(os.Stderr, "interviewer:", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	cfg := interviewer.DefaultConfig()
	if configPath != "" {
		loaded, err := interviewer.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// stdout belongs to the conversation.
	logger := logging.InitWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	tally := metrics.NewMemoryObserver()
	obs := metrics.NewAsyncObserver(observers.NewMultiObserver(
		observers.NewLoggerObserver(logging.NewComponentLogger(logger, "metrics")),
		tally,
	), 256)
	defer obs.Close()

	audioIn, audioOut, closeAudio, err := interviewer.OpenAudio(cfg.Audio)
	if err != nil {
		return err
	}
	defer closeAudio()

	reg := interviewer.NewProviderRegistry()
	interviewer.RegisterDefaults(reg)
	app, err := interviewer.Build(cfg, reg, interviewer.IO{
		AudioIn:  audioIn,
		AudioOut: audioOut,
		Observer: obs,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lc *runner.LifecycleRunner
	lc = runner.NewLifecycleRunner(runner.DrainerFunc(func(ctx context.Context) error {
		err := app.Close()
		select {
		case <-app.Session.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		return err
	}), runner.Hooks{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					lc.Fail(err)
				}
			}()
			go func() {
				c := console.New(app.Session, os.Stdin, os.Stdout, logger)
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					lc.Fail(err)
					return
				}
				_ = lc.Stop()
			}()
			return nil
		},
		OnStop: func() {
			logger.Info("interviewer_stopped",
				slog.String("session_id", app.Session.ID()),
				slog.Int("answers", tally.Count(metrics.EventAnswerSubmitted)),
				slog.Int("voice_restarts", tally.Count(metrics.EventVoiceRestart)),
				slog.Int("feedback_failures", tally.Count(metrics.EventFeedbackFailed)),
				slog.Int64("metrics_dropped", obs.Dropped()))
		},
	}, runner.Options{
		Title:        "INTERVIEWER",
		BannerOut:    os.Stdout,
		DrainTimeout: cfg.DrainTimeout(),
		Logger:       logger,
	})
	return lc.Run(ctx)
}
