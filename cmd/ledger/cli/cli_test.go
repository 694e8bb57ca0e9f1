package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

var cliNow = time.Date(2024, time.May, 31, 9, 0, 0, 0, time.UTC)

type offsetLedger struct {
	*journals.Service
	accountID int64
}

func (l offsetLedger) GetAccountBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	bal, err := l.Service.GetAccountBalance(ctx, accountID, asOf)
	if err == nil && accountID == l.accountID {
		bal = bal.Sub(decimal.NewFromInt(5))
	}
	return bal, err
}

func newIntegrityCLI(t *testing.T, drift bool) *IntegrityCLI {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	store.WithNow(func() time.Time { return cliNow })
	chart := accounts.NewService(store.Accounts(), nil, nil)
	require.NoError(t, chart.SeedDefaults(ctx))
	ledger := journals.NewService(store.Journals(), nil, nil, journals.Config{}, nil)
	ledger.WithNow(func() time.Time { return cliNow })

	bank, err := chart.GetByCode(ctx, "1200")
	require.NoError(t, err)
	capital, err := chart.GetByCode(ctx, "5100")
	require.NoError(t, err)
	_, err = ledger.CreateTransaction(ctx, bank.ID, capital.ID, decimal.NewFromInt(2500), "capital", journals.EntryHeader{EntryDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)}, true)
	require.NoError(t, err)

	var target jobs.IntegrityLedger = ledger
	if drift {
		target = offsetLedger{Service: ledger, accountID: bank.ID}
	}
	job := jobs.NewGLIntegrityJob(target, chart, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	c := NewIntegrityCLI(job)
	c.WithClock(func() time.Time { return cliNow })
	return c
}

func TestIntegrityCommandJSONClean(t *testing.T) {
	c := newIntegrityCLI(t, false)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	code := c.Command(context.Background(), IntegrityOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Zero(t, code)
	require.Empty(t, stderr.String())

	var report jobs.IntegrityReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.True(t, report.Clean())
	require.Equal(t, 1, report.Entries)
	require.Equal(t, "2024-01-01", report.Since.Format("2006-01-02"))
	require.Equal(t, "2024-05-31", report.AsOf.Format("2006-01-02"))
}

func TestIntegrityCommandFindings(t *testing.T) {
	c := newIntegrityCLI(t, true)
	stdout := new(bytes.Buffer)

	code := c.Command(context.Background(), IntegrityOptions{AsOf: "2024-03-31", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitFindings, code)
	require.Contains(t, stdout.String(), "1 account(s) drifted")
	require.Contains(t, stdout.String(), "1200 snapshot 2495.00 replay 2500.00")
}

func TestIntegrityCommandRejectsBadDates(t *testing.T) {
	c := newIntegrityCLI(t, false)
	stderr := new(bytes.Buffer)

	code := c.Command(context.Background(), IntegrityOptions{AsOf: "31/03/2024", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "invalid --as-of")

	stderr.Reset()
	code = c.Command(context.Background(), IntegrityOptions{Since: "2024-06-01", AsOf: "2024-05-01", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "since")
}

func TestBuildTask(t *testing.T) {
	task, err := BuildTask("rebuild", time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskSnapshotsRebuild, task.Type())

	task, err = BuildTask(jobs.TaskGLIntegrity, time.Time{}, true)
	require.NoError(t, err)
	var payload jobs.GLIntegrityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.Repair)
	require.Empty(t, payload.AsOf)

	_, err = BuildTask("unknown", time.Time{}, false)
	require.Error(t, err)
}
