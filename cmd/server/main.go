// Package main is the entry point for the scan coordination service.
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables (koanf v2 + validator)
//  2. Logging: zerolog, configured from LOG_LEVEL and LOG_FORMAT
//  3. Database API client: circuit-breaker-wrapped adapter to the upstream
//     identity/result store
//  4. Credential cache: background bearer-token refresh loop, started before
//     anything that depends on it
//  5. Object store and queue adapters: S3-compatible staging bucket and
//     SQS-compatible work queue
//  6. Idempotency guard: short-TTL in-memory dedup of concurrent submissions
//  7. Coordinator: the job lifecycle state machine wiring the above together
//  8. HTTP server: client- and worker-facing routes, Prometheus metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/api"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/auth"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/config"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/coordinator"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/dbapi"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/objectstore"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/queue"
)

// idempotencyTTL bounds how long a claimed fingerprint blocks a duplicate
// submission from re-staging and re-enqueuing its own job.
const idempotencyTTL = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration (-501)")
	}

	logging.Init(logging.Config{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})
	logging.Info().Int("port", cfg.Port).Msg("starting scan coordination service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient := dbapi.New(dbapi.Config{BaseURL: cfg.DBAPIURL})

	credentials := auth.NewCredentialCache(
		dbClient,
		cfg.DBAPIKey,
		cfg.CredentialRefreshInterval,
		cfg.CredentialRetryTries,
		cfg.CredentialRetryDelay,
	)
	go credentials.Run(ctx)

	objectStore, err := objectstore.New(ctx, objectstore.Config{
		AccessKeyID: cfg.S3AccessKeyID,
		SecretKey:   cfg.S3AccessKey,
		Bucket:      cfg.S3Bucket,
		Endpoint:    cfg.S3URL,
		Region:      cfg.S3Region,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize object store")
	}

	workQueue, err := queue.New(ctx, queue.Config{
		AccessKeyID: cfg.AWSAccessKeyID,
		SecretKey:   cfg.AWSSecretAccessKey,
		Region:      cfg.AWSDefaultRegion,
		QueueURL:    cfg.SQSQueueURL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize work queue")
	}

	dedupGuard, err := auth.NewIdempotencyGuard(idempotencyTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize idempotency guard")
	}
	defer func() {
		if err := dedupGuard.Close(); err != nil {
			logging.Warn().Err(err).Msg("error closing idempotency guard")
		}
	}()

	coord := coordinator.New(dbClient, credentials, objectStore, workQueue, dedupGuard, coordinator.Config{
		PublicBaseURL: cfg.PublicBaseURL,
		PollAttempts:  cfg.CoordinatorPollAttempts,
		PollInterval:  cfg.CoordinatorPollInterval,
	})

	router := api.NewRouter(api.Dependencies{
		Recognizer:          coord,
		AuthChecker:         dbClient,
		DBHealth:            dbClient,
		Queue:               workQueue,
		Results:             dbClient,
		Objects:             objectStore,
		Credentials:         credentials,
		URLFetcher:          &http.Client{Timeout: 30 * time.Second},
		PollAttempts:        cfg.CoordinatorPollAttempts,
		WorkerLeaseAttempts: cfg.WorkerLeaseAttempts,
		WorkerLeaseInterval: cfg.WorkerLeaseInterval,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("http server listening")
		serveErrCh <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during graceful shutdown")
	}

	logging.Info().Msg("scan coordination service stopped")
}
