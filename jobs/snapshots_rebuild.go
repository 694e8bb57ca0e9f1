package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// SnapshotRebuilder rewrites balance snapshots.
type SnapshotRebuilder interface {
	RebuildSnapshots(ctx context.Context, asOf time.Time) (int, error)
}

// SnapshotsRebuildJob recomputes every account snapshot at a date.
type SnapshotsRebuildJob struct {
	Ledger  SnapshotRebuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSnapshotsRebuildJob constructs the job handler.
func NewSnapshotsRebuildJob(ledger SnapshotRebuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotsRebuildJob {
	return &SnapshotsRebuildJob{
		Ledger:  ledger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the rebuild.
func (j *SnapshotsRebuildJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("snapshots rebuild: ledger not configured")
	}
	var payload SnapshotsRebuildPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf, err := parseDate(payload.AsOf, j.now())
	if err != nil {
		return fmt.Errorf("snapshots rebuild: as_of: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskSnapshotsRebuild)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	n, err := j.Ledger.RebuildSnapshots(ctx, asOf)
	if err != nil {
		resultErr = err
		j.log().Error("rebuild snapshots", slog.String("as_of", asOf.Format(shared.DateLayout)), slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddRebuilt(n)
	j.log().Info("snapshots rebuilt", slog.String("as_of", asOf.Format(shared.DateLayout)), slog.Int("accounts", n), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *SnapshotsRebuildJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SnapshotsRebuildJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSnapshotsRebuild))
	}
	return slog.Default().With(slog.String("job", TaskSnapshotsRebuild))
}

func (j *SnapshotsRebuildJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *SnapshotsRebuildJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
