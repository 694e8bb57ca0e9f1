package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotsRebuild recomputes balance snapshots at a date.
	TaskSnapshotsRebuild = "ledger:snapshots_rebuild"
	// TaskGLIntegrity compares snapshot balances against a full replay.
	TaskGLIntegrity = "ledger:gl_integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SnapshotsRebuildPayload selects the snapshot date. An empty date means
// today.
type SnapshotsRebuildPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// GLIntegrityPayload scopes the integrity check. Empty dates mean the current
// year to date. Repair rebuilds snapshots when drift is found.
type GLIntegrityPayload struct {
	AsOf   string `json:"as_of,omitempty"`
	Since  string `json:"since,omitempty"`
	Repair bool   `json:"repair,omitempty"`
}

// NewSnapshotsRebuildTask builds a rebuild task. Tasks for the same date share
// an id so a duplicate enqueue is rejected while one is pending.
func NewSnapshotsRebuildTask(asOf time.Time) (*asynq.Task, error) {
	payload := SnapshotsRebuildPayload{}
	opts := []asynq.Option{asynq.Queue(QueueDefault)}
	if !asOf.IsZero() {
		payload.AsOf = shared.DateOnly(asOf).Format(shared.DateLayout)
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(TaskSnapshotsRebuild+":"+payload.AsOf))
		opts = append(opts, asynq.TaskID(id.String()))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotsRebuild, body, opts...), nil
}

// NewGLIntegrityTask builds an integrity check task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, body, asynq.Queue(QueueDefault)), nil
}

func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return shared.DateOnly(fallback), nil
	}
	d, err := time.Parse(shared.DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return d, nil
}
