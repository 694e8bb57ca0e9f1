package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var jobNow = time.Date(2024, time.June, 30, 22, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func seededLedger(t *testing.T) (*journals.Service, *accounts.Service) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	store.WithNow(func() time.Time { return jobNow })
	chart := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, chart.SeedDefaults(ctx))
	ledger := journals.NewService(store.Journals(), nil, nil, journals.Config{}, nil)
	ledger.WithNow(func() time.Time { return jobNow })

	cash, err := chart.GetByCode(ctx, "1100")
	require.NoError(t, err)
	sales, err := chart.GetByCode(ctx, "6100")
	require.NoError(t, err)
	for _, d := range []time.Time{day(time.April, 2), day(time.May, 20), day(time.January, 5)} {
		_, err := ledger.CreateTransaction(ctx, cash.ID, sales.ID, decimal.NewFromInt(100), "sale", journals.EntryHeader{EntryDate: d}, true)
		require.NoError(t, err)
	}
	return ledger, chart
}

// driftingLedger reports a snapshot balance off by one for a single account.
type driftingLedger struct {
	*journals.Service
	accountID int64
	rebuilds  int
}

func (l *driftingLedger) GetAccountBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	bal, err := l.Service.GetAccountBalance(ctx, accountID, asOf)
	if err != nil || accountID != l.accountID || l.rebuilds > 0 {
		return bal, err
	}
	return bal.Add(decimal.NewFromInt(1)), nil
}

func (l *driftingLedger) RebuildSnapshots(ctx context.Context, asOf time.Time) (int, error) {
	l.rebuilds++
	return l.Service.RebuildSnapshots(ctx, asOf)
}

func TestGLIntegrityCleanLedger(t *testing.T) {
	ledger, chart := seededLedger(t)
	job := NewGLIntegrityJob(ledger, chart, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.WithClock(func() time.Time { return jobNow })

	report, err := job.Check(context.Background(), day(time.January, 1), day(time.June, 30), false)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 27, report.Accounts)
	assert.False(t, report.Repaired)
}

func TestGLIntegrityReportsAndRepairsDrift(t *testing.T) {
	ledger, chart := seededLedger(t)
	cash, err := chart.GetByCode(context.Background(), "1100")
	require.NoError(t, err)
	drifting := &driftingLedger{Service: ledger, accountID: cash.ID}
	job := NewGLIntegrityJob(drifting, chart, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	report, err := job.Check(context.Background(), day(time.January, 1), day(time.June, 30), false)
	require.NoError(t, err)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, "1100", report.Drift[0].Code)
	assert.Equal(t, "301.00", report.Drift[0].Snapshot.StringFixed(2))
	assert.Equal(t, "300.00", report.Drift[0].Replay.StringFixed(2))
	assert.Zero(t, drifting.rebuilds)

	report, err = job.Check(context.Background(), day(time.January, 1), day(time.June, 30), true)
	require.NoError(t, err)
	assert.True(t, report.Repaired)
	assert.Equal(t, 1, drifting.rebuilds)
}

func TestGLIntegrityRejectsInvertedRange(t *testing.T) {
	ledger, chart := seededLedger(t)
	job := NewGLIntegrityJob(ledger, chart, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	_, err := job.Check(context.Background(), day(time.July, 1), day(time.June, 30), false)
	require.Error(t, err)
}

func TestGLIntegrityHandleDefaultsToYearToDate(t *testing.T) {
	ledger, chart := seededLedger(t)
	job := NewGLIntegrityJob(ledger, chart, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.WithClock(func() time.Time { return jobNow })

	task, err := NewGLIntegrityTask(GLIntegrityPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(TaskGLIntegrity, []byte(`{"as_of":"30/06/2024"}`))
	err = job.Handle(context.Background(), bad)
	require.ErrorIs(t, err, asynq.SkipRetry)

	garbage := asynq.NewTask(TaskGLIntegrity, []byte(`not-json`))
	require.ErrorIs(t, job.Handle(context.Background(), garbage), asynq.SkipRetry)
}

type countingRebuilder struct {
	asOf []time.Time
	err  error
}

func (r *countingRebuilder) RebuildSnapshots(_ context.Context, asOf time.Time) (int, error) {
	r.asOf = append(r.asOf, asOf)
	return 7, r.err
}

func TestSnapshotsRebuildJob(t *testing.T) {
	rebuilder := &countingRebuilder{}
	job := NewSnapshotsRebuildJob(rebuilder, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.WithClock(func() time.Time { return jobNow })

	task, err := NewSnapshotsRebuildTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewSnapshotsRebuildTask(time.Date(2024, time.March, 31, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var payload SnapshotsRebuildPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "2024-03-31", payload.AsOf)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, rebuilder.asOf, 2)
	assert.Equal(t, day(time.June, 30), rebuilder.asOf[0])
	assert.Equal(t, day(time.March, 31), rebuilder.asOf[1])

	rebuilder.err = errors.New("boom")
	require.Error(t, job.Handle(context.Background(), task))
}
