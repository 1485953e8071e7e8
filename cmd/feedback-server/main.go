package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harunnryd/interviewer/pkg/feedback"
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
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	if err := run(*configPath, *envPath, *addr); err != nil {
		fmt.Fprintln(os.Stderr, "feedback-server:", err)
		os.Exit(1)
	}
}

func run(configPath, envPath, addr string) error {
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
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	obs := metrics.NewAsyncObserver(observers.NewLoggerObserver(logging.NewComponentLogger(logger, "metrics")), 256)
	defer obs.Close()

	reg := interviewer.NewProviderRegistry()
	interviewer.RegisterDefaults(reg)
	gen, err := interviewer.BuildGenerator(cfg, reg, obs, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: feedback.NewRouter(gen, feedback.RouterOptions{
			Path:           cfg.Server.Path,
			AllowedOrigin:  cfg.Server.AllowedOrigin,
			RequestTimeout: cfg.FeedbackTimeout(),
			Logger:         logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lc *runner.LifecycleRunner
	lc = runner.NewLifecycleRunner(runner.DrainerFunc(srv.Shutdown), runner.Hooks{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("feedback_server_listening",
					slog.String("addr", srv.Addr),
					slog.String("path", cfg.Server.Path),
					slog.String("llm", cfg.Vendors.LLM.Provider))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					lc.Fail(err)
				}
			}()
			return nil
		},
		OnStop: func() {
			logger.Info("feedback_server_stopped")
		},
	}, runner.Options{
		Title:        "FEEDBACK",
		BannerOut:    os.Stdout,
		DrainTimeout: cfg.DrainTimeout(),
		Logger:       logger,
	})
	return lc.Run(ctx)
}
