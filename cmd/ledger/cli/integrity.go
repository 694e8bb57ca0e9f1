package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// ExitFindings is returned when the check completes but records drift or
// unbalanced entries.
const ExitFindings = 10

// IntegrityOptions defines available flags for the integrity command.
type IntegrityOptions struct {
	Since      string
	AsOf       string
	Repair     bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// IntegrityCLI runs the ledger integrity check in process.
type IntegrityCLI struct {
	job   *jobs.GLIntegrityJob
	clock func() time.Time
}

// NewIntegrityCLI constructs the helper around a configured job.
func NewIntegrityCLI(job *jobs.GLIntegrityJob) *IntegrityCLI {
	return &IntegrityCLI{job: job, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the reference clock used for default dates.
func (c *IntegrityCLI) WithClock(clock func() time.Time) {
	if clock != nil {
		c.clock = clock
	}
}

// Command executes the check and prints the outcome.
func (c *IntegrityCLI) Command(ctx context.Context, opts IntegrityOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if c == nil || c.job == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "integrity: ledger not configured")
		return 1
	}
	asOf := shared.DateOnly(c.clock())
	if raw := strings.TrimSpace(opts.AsOf); raw != "" {
		parsed, err := time.Parse(shared.DateLayout, raw)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "integrity: invalid --as-of %q (expected YYYY-MM-DD)\n", opts.AsOf)
			return 1
		}
		asOf = parsed
	}
	since := shared.StartOfYear(asOf)
	if raw := strings.TrimSpace(opts.Since); raw != "" {
		parsed, err := time.Parse(shared.DateLayout, raw)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "integrity: invalid --since %q (expected YYYY-MM-DD)\n", opts.Since)
			return 1
		}
		since = parsed
	}

	report, err := c.job.Check(ctx, since, asOf, opts.Repair)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "integrity: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "integrity: encode json: %v\n", err)
			return 1
		}
	} else {
		renderIntegrityHuman(opts.Stdout, report)
	}
	if !report.Clean() {
		return ExitFindings
	}
	return 0
}

func renderIntegrityHuman(out io.Writer, report jobs.IntegrityReport) {
	_, _ = fmt.Fprintf(out, "Ledger integrity %s to %s\n", report.Since.Format(shared.DateLayout), report.AsOf.Format(shared.DateLayout))
	_, _ = fmt.Fprintf(out, "Checked %d account(s) and %d posted entr(ies).\n", report.Accounts, report.Entries)
	if report.Clean() {
		_, _ = fmt.Fprintln(out, "Snapshots match replay and every entry balances.")
		return
	}
	if len(report.Drift) > 0 {
		_, _ = fmt.Fprintf(out, "%d account(s) drifted:\n", len(report.Drift))
		for _, d := range report.Drift {
			_, _ = fmt.Fprintf(out, " - %s snapshot %s replay %s\n", d.Code, d.Snapshot.StringFixed(2), d.Replay.StringFixed(2))
		}
	}
	if len(report.Unbalanced) > 0 {
		_, _ = fmt.Fprintf(out, "%d unbalanced entr(ies): %s\n", len(report.Unbalanced), strings.Join(report.Unbalanced, ", "))
	}
	if report.Repaired {
		_, _ = fmt.Fprintln(out, "Snapshots rebuilt.")
	}
}
