package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// invalidatingRebuilder bumps the shared report cache after a rebuild so API
// nodes drop statements computed from the old snapshots.
type invalidatingRebuilder struct {
	ledger *app.Ledger
}

func (r invalidatingRebuilder) RebuildSnapshots(ctx context.Context, asOf time.Time) (int, error) {
	n, err := r.ledger.Journals.RebuildSnapshots(ctx, asOf)
	if err != nil {
		return n, err
	}
	r.ledger.Reports.Invalidate(ctx, nil)
	return n, nil
}

type integrityLedger struct {
	*journals.Service
	rebuilder invalidatingRebuilder
}

func (l integrityLedger) RebuildSnapshots(ctx context.Context, asOf time.Time) (int, error) {
	return l.rebuilder.RebuildSnapshots(ctx, asOf)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.Postgres())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	ledger := app.NewLedger(app.PostgresRepositories(pool), shared.NewAuditLogger(pool), reportCache, cfg, logger)

	metrics := jobmetrics.NewMetrics(nil)
	rebuilder := invalidatingRebuilder{ledger: ledger}
	rebuildJob := jobs.NewSnapshotsRebuildJob(rebuilder, logger, metrics)
	integrityJob := jobs.NewGLIntegrityJob(integrityLedger{Service: ledger.Journals, rebuilder: rebuilder}, ledger.Accounts, logger, metrics)

	rebuildTask, err := jobs.NewSnapshotsRebuildTask(time.Time{})
	if err != nil {
		logger.Error("build rebuild task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewGLIntegrityTask(jobs.GLIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Queue(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSnapshotsRebuild, Handler: rebuildJob.Handle},
			{Type: jobs.TaskGLIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: rebuildTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
