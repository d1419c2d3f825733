package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/config"
	httptransport "github.com/example/proof-of-ship/internal/http"
	"github.com/example/proof-of-ship/internal/logging"
	"github.com/example/proof-of-ship/internal/observability"
	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/persistence/memory"
	"github.com/example/proof-of-ship/internal/persistence/postgres"
	"github.com/example/proof-of-ship/internal/persistence/sqlite"
	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/scheduler"
)

func main() {
	evaluateOnce := flag.Bool("evaluate-once", false, "run one evaluation pass, print the scorecard and exit")
	hashToken := flag.String("hash-token", "", "print the argon2id hash of the given API token and exit")
	flag.Parse()

	if *hashToken != "" {
		encoded, err := application.CreateTokenHash(*hashToken, application.DefaultArgon2idParams)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(encoded)
		return
	}

	// A missing .env file is expected outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *evaluateOnce, os.Stdout); err != nil {
		logger.Error("proofship exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, evaluateOnce bool, out io.Writer) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, os.Stderr, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	source, closeSource, err := buildSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	now := time.Now
	commitments := newCommitmentRepositoryAdapter(store)
	verdicts := newVerdictRepositoryAdapter(store, now)

	guard := application.NewWriteGuard()
	options := application.EvaluationOptions{History: cfg.HistoryWeeks, Guard: guard}
	commitmentService := application.NewCommitmentServiceWithLogger(commitments, verdicts, uuid.NewString, now, guard, logger)
	evaluationService := application.NewEvaluationServiceWithLogger(commitments, verdicts, source, now, options, logger)
	evidenceService := application.NewEvidenceServiceWithLogger(commitments, verdicts, now, evaluationService.History(), guard, logger)

	if evaluateOnce {
		return evaluateAndPrint(ctx, evaluationService, out)
	}

	routerCfg := httptransport.RouterConfig{
		Commitments: httptransport.NewCommitmentHandler(commitmentService, now, logger),
		Evaluations: httptransport.NewEvaluationHandler(evaluationService, logger),
		Evidence:    httptransport.NewEvidenceHandler(evidenceService, logger),
		Middleware:  []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	}
	if cfg.APITokenHash != "" {
		verifier, err := application.NewTokenVerifier(cfg.APITokenHash)
		if err != nil {
			return fmt.Errorf("parse api token hash: %w", err)
		}
		routerCfg.Protect = httptransport.RequireToken(verifier, logger)
	} else {
		logger.Warn("no API token hash configured; mutating endpoints are unauthenticated")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httptransport.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("proof-of-ship API listening", "addr", server.Addr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})
	if cfg.EvaluationInterval > 0 {
		runner := scheduler.NewRunner(evaluationService, commitmentService, cfg.EvaluationInterval, scheduler.WithLogger(logger))
		g.Go(func() error { return runner.Run(gctx) })
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memory.Open(), nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	}
}

// buildSource wraps the GitHub client with the configured cache. A zero TTL
// disables caching.
func buildSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (release.Source, func(), error) {
	client := release.NewGitHubClient(release.GitHubConfig{
		BaseURL: cfg.GitHubAPIURL,
		Token:   cfg.GitHubToken,
		Timeout: cfg.FetchTimeout,
		Logger:  logger,
	})
	noop := func() {}

	if cfg.CacheTTL <= 0 {
		return client, noop, nil
	}
	if cfg.RedisAddr == "" {
		cache := release.NewMemoryCache(cfg.CacheTTL, 0, nil)
		return release.NewCachedSource(client, cache, logger), noop, nil
	}

	cache, err := release.NewRedisCache(ctx, cfg.RedisAddr, cfg.CacheTTL)
	if err != nil {
		return nil, noop, fmt.Errorf("connect redis cache: %w", err)
	}
	closeCache := func() {
		if err := cache.Close(); err != nil {
			logger.Error("failed to close redis cache", "error", err)
		}
	}
	return release.NewCachedSource(client, cache, logger), closeCache, nil
}

func evaluateAndPrint(ctx context.Context, service *application.EvaluationService, out io.Writer) error {
	if _, err := service.Evaluate(ctx); err != nil {
		var fErr *application.FetchFailedError
		if errors.As(err, &fErr) {
			return fmt.Errorf("%s: %w", fErr.Message(), err)
		}
		return err
	}
	card, err := service.Scorecard(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newScorecardOutput(card))
}
