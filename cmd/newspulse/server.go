package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newspulse/newspulse/internal/aggregate"
	"github.com/newspulse/newspulse/internal/api"
	"github.com/newspulse/newspulse/internal/cache"
	"github.com/newspulse/newspulse/internal/classify"
	"github.com/newspulse/newspulse/internal/config"
	"github.com/newspulse/newspulse/internal/dedupe"
	"github.com/newspulse/newspulse/internal/ingest"
	"github.com/newspulse/newspulse/internal/llm"
	"github.com/newspulse/newspulse/internal/queue"
	"github.com/newspulse/newspulse/internal/search"
	"github.com/newspulse/newspulse/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, queue worker, and fetch scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the queue worker and fetch scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

// app bundles the wired services shared by the serve and worker commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *storage.Store
	consumer  *queue.Consumer
	scheduler *aggregate.Scheduler
	handler   http.Handler
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing resources: %v\n", err)
		}
	}
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	var articleCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "newspulse")
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, redisCache.Close)
		articleCache = redisCache
		logger.Info("cache backend ready", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		articleCache = cache.NewMemory()
		logger.Info("cache backend ready", "backend", "memory")
	}

	var (
		classifier     classify.Classifier
		ingestEmbedder ingest.Embedder
		searchEmbedder search.Embedder
	)
	if cfg.LLM.APIKey != "" {
		client := llm.NewClient(cfg.LLM)
		classifier = llm.NewClassifier(client, cfg.LLM.Model)
		embedder := llm.NewEmbedder(client, cfg.LLM.EmbedModel)
		ingestEmbedder = embedder
		searchEmbedder = embedder
	} else {
		logger.Warn("GEMINI_API_KEY not set, classification and embeddings disabled")
	}

	gate := dedupe.NewGate(store, articleCache, cfg.Worker.DedupeTTL, logger)
	jobs := queue.New(store, cfg.Worker.MaxAttempts)
	ingestSvc := ingest.NewService(store, gate, ingestEmbedder, jobs, logger)
	aggregator := aggregate.NewAggregator(ingestSvc, cfg.Fetch.UserAgent, nil, logger)

	consumer := queue.NewConsumer(store, cfg.Worker.PollInterval, cfg.Worker.MaxAttempts, logger)
	consumer.Handle(aggregate.JobTypeRSS, aggregator.HandleRSS, nil)
	consumer.Handle(aggregate.JobTypeReddit, aggregator.HandleReddit, nil)
	if classifier != nil {
		classifyHandler := classify.NewHandler(store, classifier, logger)
		consumer.Handle(classify.JobType, classifyHandler.Handle, classifyHandler.OnExhausted)
	}
	a.consumer = consumer

	a.scheduler = aggregate.NewScheduler(jobs, cfg.Fetch.RSSFeeds, cfg.Fetch.Subreddits, cfg.Fetch.Interval, logger)

	searchSvc := search.NewService(store, articleCache, searchEmbedder,
		cfg.Search.CacheTTL, cfg.Search.DefaultPage, cfg.Search.MaxPage, logger)
	ops := classify.NewOps(store, jobs, logger)
	a.handler = api.NewHandler(api.Deps{
		Search:  searchSvc,
		Repairs: ops,
		Fetcher: a.scheduler,
		Token:   cfg.Server.APIToken,
	})

	return a, nil
}

func runServe() error {
	fmt.Fprintf(os.Stderr, "newspulse version %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pidPath := pidFilePath(a.cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	go a.consumer.Run(ctx)
	go a.scheduler.Run(ctx)

	srv := &http.Server{
		Addr:    a.cfg.Server.BindAddr,
		Handler: a.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runWorker() error {
	fmt.Fprintf(os.Stderr, "newspulse worker version %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.scheduler.Run(ctx)
	a.consumer.Run(ctx)

	fmt.Fprintln(os.Stderr, "worker stopped")
	return nil
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "newspulse.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile(path string) {
	os.Remove(path)
}
