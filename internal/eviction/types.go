package eviction

import (
	"time"

	"github.com/lucasew/slackoffload/internal/inventory"
)

// Strategy picks the next record to migrate.
type Strategy interface {
	// Select returns an index into candidates, which is never empty and is
	// kept in the source store's listing order.
	Select(candidates []inventory.FileRecord) int
}

// Migration is a record that was archived and then removed from the source.
type Migration struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size uint64 `json:"size"`
	Key  string `json:"key"`
}

// Skipped is a record that exhausted its attempt budget during a run.
type Skipped struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      uint64 `json:"size"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

// Run outcomes stored in Report.Result.
const (
	ResultNoop       = "noop"
	ResultMigrated   = "migrated"
	ResultQuotaUnmet = "quota_unmet"
	ResultFailed     = "failed"
	ResultCanceled   = "canceled"
)

// Report summarizes one controller run.
type Report struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Location string `json:"location,omitempty"`

	Limit       uint64 `json:"limit"`
	Target      uint64 `json:"target"`
	TotalBefore uint64 `json:"total_before"`
	TotalAfter  uint64 `json:"total_after"`

	FilesRemoved int         `json:"files_removed"`
	BytesSaved   uint64      `json:"bytes_saved"`
	Migrated     []Migration `json:"migrated"`
	Skipped      []Skipped   `json:"skipped"`

	Result string `json:"result"`
	Error  string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Acted reports whether the run removed anything from the source store.
func (r *Report) Acted() bool {
	return r.FilesRemoved > 0
}
