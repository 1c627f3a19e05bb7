package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/mockinterview/api"
	dbfs "github.com/garnizeh/mockinterview/db"
	"github.com/garnizeh/mockinterview/internal/ai"
	"github.com/garnizeh/mockinterview/internal/coach"
	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/jobs"
	"github.com/garnizeh/mockinterview/internal/ratelimit"
	"github.com/garnizeh/mockinterview/internal/repository/sqlstore"
	"github.com/garnizeh/mockinterview/internal/speech"
	"github.com/garnizeh/mockinterview/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)
	interview.SetLogger(logger)
	jobs.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting mockinterview server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		return err
	}

	store := sqlstore.New(database, logger)

	llm, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		return err
	}
	defer llm.Close()

	engine, err := ai.NewEngine(ctx, llm, cfg.EngineConfig, store, store, logger)
	if err != nil {
		return err
	}

	svc := interview.NewService(store, engine, engine)

	chatCfg := cfg.Chat
	if chatCfg.Model == "" {
		chatCfg.Model = cfg.EngineConfig.Model
	}

	health := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error { return database.GetConn().PingContext(ctx) },
		"ollama":   llm.Health,
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.RedisAddr != "" {
		rdb := ratelimit.NewClient(cfg.RateLimit.RedisAddr)
		defer rdb.Close()
		limiter = ratelimit.New(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("rate limiting enabled", slog.String("redis", cfg.RateLimit.RedisAddr))
	}

	if cfg.Jobs.EvaluateOnSubmit {
		pool := jobs.NewWorkerPool(jobs.NewRepository(database), map[string]jobs.Handler{
			interview.JobEvaluate: func(ctx context.Context, j *jobs.Job) error {
				return svc.HandleEvaluateJob(ctx, j.Payload)
			},
		}, cfg.Jobs.Workers, cfg.Jobs.MaxAttempts)
		pool.Start(ctx)
		defer pool.Stop()
		svc.EnqueueEvaluationOnSubmit(pool)
		logger.Info("background evaluation enabled", slog.Int("workers", cfg.Jobs.Workers))
	}

	handler := api.SetupRoutes(api.Deps{
		Config:     cfg,
		Version:    version,
		BuildTime:  buildTime,
		Users:      store,
		Profiles:   store,
		Schemas:    store,
		Templates:  store,
		Interviews: svc,
		Coach:      coach.New(llm, chatCfg),
		Speech:     speech.Stub{},
		Reloader:   engine,
		Limiter:    limiter,
		Health:     health,
	})

	// Chat routes stream for up to chat.timeout, so the write deadline must cover it.
	writeTimeout := cfg.APITimeout
	if chatCfg.Timeout+5*time.Second > writeTimeout {
		writeTimeout = chatCfg.Timeout + 5*time.Second
	}
	if cfg.EngineConfig.Timeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.EngineConfig.Timeout + 5*time.Second
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}
