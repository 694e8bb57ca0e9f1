package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const integrityWorkers = 4

// IntegrityLedger exposes the balance paths the check compares.
type IntegrityLedger interface {
	SnapshotRebuilder
	GetAccountBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
	ReplayBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
	EntriesBetween(ctx context.Context, start, end time.Time, status journals.Status) ([]journals.JournalEntry, error)
	Tolerance() decimal.Decimal
}

// AccountLister lists the chart of accounts.
type AccountLister interface {
	List(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error)
}

// Drift records an account whose snapshot path disagrees with a replay.
type Drift struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Snapshot  decimal.Decimal `json:"snapshot"`
	Replay    decimal.Decimal `json:"replay"`
}

// IntegrityReport summarises one integrity run.
type IntegrityReport struct {
	AsOf       time.Time `json:"as_of"`
	Since      time.Time `json:"since"`
	Accounts   int       `json:"accounts"`
	Entries    int       `json:"entries"`
	Drift      []Drift   `json:"drift,omitempty"`
	Unbalanced []string  `json:"unbalanced,omitempty"`
	Repaired   bool      `json:"repaired"`
}

// Clean reports whether no finding was recorded.
func (r IntegrityReport) Clean() bool {
	return len(r.Drift) == 0 && len(r.Unbalanced) == 0
}

// GLIntegrityJob verifies that snapshot balances equal a full replay and that
// every posted entry balances.
type GLIntegrityJob struct {
	Ledger  IntegrityLedger
	Chart   AccountLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob constructs the job handler.
func NewGLIntegrityJob(ledger IntegrityLedger, chart AccountLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Ledger:  ledger,
		Chart:   chart,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity check.
func (j *GLIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Ledger == nil || j.Chart == nil {
		return errors.New("gl integrity: dependencies not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf, err := parseDate(payload.AsOf, j.now())
	if err != nil {
		return fmt.Errorf("gl integrity: as_of: %v: %w", err, asynq.SkipRetry)
	}
	since, err := parseDate(payload.Since, shared.StartOfYear(asOf))
	if err != nil {
		return fmt.Errorf("gl integrity: since: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskGLIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	report, err := j.Check(ctx, since, asOf, payload.Repair)
	if err != nil {
		resultErr = err
		j.log().Error("integrity check", slog.Any("error", err))
		return resultErr
	}
	if report.Clean() {
		j.log().Info("ledger consistent", slog.Int("accounts", report.Accounts), slog.Int("entries", report.Entries))
	}
	return resultErr
}

// Check runs the comparison between since and asOf. When repair is set and
// drift is found, snapshots are rebuilt at asOf.
func (j *GLIntegrityJob) Check(ctx context.Context, since, asOf time.Time, repair bool) (IntegrityReport, error) {
	since, asOf = shared.DateOnly(since), shared.DateOnly(asOf)
	if since.After(asOf) {
		return IntegrityReport{}, shared.Invalid("since", "must not be after as_of")
	}
	report := IntegrityReport{AsOf: asOf, Since: since}

	list, err := j.Chart.List(ctx, accounts.ListFilter{})
	if err != nil {
		return report, err
	}
	report.Accounts = len(list)

	results := make([]*Drift, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(integrityWorkers)
	for i, acc := range list {
		g.Go(func() error {
			snap, err := j.Ledger.GetAccountBalance(gctx, acc.ID, asOf)
			if err != nil {
				return fmt.Errorf("snapshot balance %s: %w", acc.Code, err)
			}
			replay, err := j.Ledger.ReplayBalance(gctx, acc.ID, asOf)
			if err != nil {
				return fmt.Errorf("replay balance %s: %w", acc.Code, err)
			}
			if !snap.Equal(replay) {
				results[i] = &Drift{AccountID: acc.ID, Code: acc.Code, Snapshot: snap, Replay: replay}
			}
			return nil
		})
	}
	var entries []journals.JournalEntry
	g.Go(func() error {
		var err error
		entries, err = j.Ledger.EntriesBetween(gctx, since, asOf, journals.StatusPosted)
		return err
	})
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, d := range results {
		if d == nil {
			continue
		}
		report.Drift = append(report.Drift, *d)
		j.log().Warn("snapshot drift",
			slog.String("account", d.Code),
			slog.String("snapshot", d.Snapshot.StringFixed(2)),
			slog.String("replay", d.Replay.StringFixed(2)))
	}
	report.Entries = len(entries)
	tolerance := j.Ledger.Tolerance()
	for _, e := range entries {
		if !e.IsBalanced(tolerance) {
			report.Unbalanced = append(report.Unbalanced, e.EntryNumber)
			j.log().Warn("unbalanced posted entry",
				slog.String("number", e.EntryNumber),
				slog.String("debit", e.TotalDebits().StringFixed(2)),
				slog.String("credit", e.TotalCredits().StringFixed(2)))
		}
	}
	j.metrics().AddMismatches("snapshot", len(report.Drift))
	j.metrics().AddMismatches("unbalanced", len(report.Unbalanced))

	if repair && len(report.Drift) > 0 {
		n, err := j.Ledger.RebuildSnapshots(ctx, asOf)
		if err != nil {
			return report, err
		}
		j.metrics().AddRebuilt(n)
		report.Repaired = true
	}
	return report, nil
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *GLIntegrityJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
