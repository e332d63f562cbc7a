package eviction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/lucasew/slackoffload/internal/errutil"
	"github.com/lucasew/slackoffload/internal/eviction/policy"
	"github.com/lucasew/slackoffload/internal/inventory"
	"github.com/lucasew/slackoffload/internal/logctx"
)

// DefaultMaxAttempts bounds how often one record is tried within a run.
const DefaultMaxAttempts = 3

// Lister produces the full inventory of the source store.
type Lister interface {
	ListFiles(ctx context.Context) (inventory.Inventory, error)
}

// Archiver copies a record to cold storage and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, rec inventory.FileRecord) (string, error)
}

// Evictor deletes a record from the source store.
type Evictor interface {
	Evict(ctx context.Context, rec inventory.FileRecord) error
}

// Journal persists migrations and run summaries. Journal failures are
// logged and never abort a run.
type Journal interface {
	RecordMigration(ctx context.Context, runID string, m Migration) error
	RecordRun(ctx context.Context, r *Report) error
}

// Recorder receives run measurements.
type Recorder interface {
	ObserveUsage(total, limit, target uint64)
	ObserveMigration(size uint64)
	ObserveFailure(stage string)
	ObserveRun(result string)
}

// Options tunes a Controller. The zero value is usable.
type Options struct {
	// Strategy names a registered Strategy. Empty means DefaultStrategy.
	Strategy string
	// MaxAttempts per record before it is skipped. Zero means DefaultMaxAttempts.
	MaxAttempts int
	// RunTimeout bounds a whole run. Zero disables it.
	RunTimeout time.Duration
	// Location is reported as the cold storage destination.
	Location string

	Journal  Journal
	Recorder Recorder

	// OnListed is called once the inventory is known, before any migration.
	OnListed func(total, limit, target uint64)
	// OnMigrated is called after each successful migration.
	OnMigrated func(m Migration)
}

// Controller drives one quota enforcement run: list once, then archive and
// evict candidates until usage is back under the policy threshold.
type Controller struct {
	lister   Lister
	archiver Archiver
	evictor  Evictor
	policy   policy.Policy
	strategy Strategy
	opts     Options
}

func NewController(lister Lister, archiver Archiver, evictor Evictor, p policy.Policy, opts Options) (*Controller, error) {
	if opts.Strategy == "" {
		opts.Strategy = DefaultStrategy
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	strategy, err := GetStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}

	return &Controller{
		lister:   lister,
		archiver: archiver,
		evictor:  evictor,
		policy:   p,
		strategy: strategy,
		opts:     opts,
	}, nil
}

// run is the mutable state of one Run call.
type run struct {
	working  inventory.Inventory
	attempts map[string]int
	skipped  map[string]bool
	engaged  bool
}

// Run performs one enforcement pass. The returned Report is never nil, also
// when an error is returned.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	if c.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RunTimeout)
		defer cancel()
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Strategy:  c.opts.Strategy,
		Location:  c.opts.Location,
		Limit:     c.policy.Threshold(false),
		Target:    c.policy.Threshold(true),
		Migrated:  []Migration{},
		Skipped:   []Skipped{},
		StartedAt: time.Now(),
	}
	ctx = logctx.WithStr(ctx, "run_id", report.RunID)
	logger := logctx.FromContext(ctx)

	listed, err := c.lister.ListFiles(ctx)
	if err != nil {
		return c.finish(ctx, report, nil, fmt.Errorf("%w: %w", ErrListingFailed, err))
	}

	st := &run{
		working:  slices.Clone(listed),
		attempts: make(map[string]int),
		skipped:  make(map[string]bool),
	}
	report.TotalBefore = st.working.TotalSize()
	c.opts.Recorder.ObserveUsage(report.TotalBefore, report.Limit, report.Target)
	if c.opts.OnListed != nil {
		c.opts.OnListed(report.TotalBefore, report.Limit, report.Target)
	}

	logger.Info().
		Int("files", len(st.working)).
		Uint64("total", report.TotalBefore).
		Uint64("limit", report.Limit).
		Uint64("target", report.Target).
		Msg("Listed source files")

	for {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, report, st, err)
		}

		total := st.working.TotalSize()
		if total <= c.policy.Threshold(st.engaged) {
			break
		}
		st.engaged = true

		idx, ok := c.pick(st)
		if !ok {
			break
		}
		rec := st.working[idx]

		key, err := c.migrate(logctx.WithStr(ctx, "file_id", rec.ID), rec)
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(ctx, report, st, ctx.Err())
			}
			c.fail(ctx, report, st, rec, err)
			continue
		}

		st.working = slices.Delete(st.working, idx, idx+1)
		m := Migration{ID: rec.ID, Name: rec.Name, Size: rec.Size, Key: key}
		report.FilesRemoved++
		report.BytesSaved += rec.Size
		report.Migrated = append(report.Migrated, m)

		c.opts.Recorder.ObserveMigration(rec.Size)
		if c.opts.Journal != nil {
			errutil.LogMsg(ctx, c.opts.Journal.RecordMigration(ctx, report.RunID, m), "Failed to journal migration", "file_id", rec.ID)
		}
		if c.opts.OnMigrated != nil {
			c.opts.OnMigrated(m)
		}
		logger.Info().
			Str("file_id", rec.ID).
			Str("key", key).
			Uint64("size", rec.Size).
			Msg("Migrated file")
	}

	var runErr error
	if total := st.working.TotalSize(); total > c.policy.Threshold(st.engaged) {
		runErr = fmt.Errorf("%w: %d bytes remain above %d after skipping %d files",
			ErrQuotaUnmet, total, c.policy.Threshold(st.engaged), len(report.Skipped))
	}
	return c.finish(ctx, report, st, runErr)
}

// pick asks the strategy for a candidate among records that still have
// attempts left and maps its choice back to the working set.
func (c *Controller) pick(st *run) (int, bool) {
	candidates := make([]inventory.FileRecord, 0, len(st.working))
	positions := make([]int, 0, len(st.working))
	for i, rec := range st.working {
		if st.skipped[rec.ID] {
			continue
		}
		candidates = append(candidates, rec)
		positions = append(positions, i)
	}
	if len(candidates) == 0 {
		return 0, false
	}

	choice := c.strategy.Select(candidates)
	if choice < 0 || choice >= len(candidates) {
		choice = len(candidates) - 1
	}
	return positions[choice], true
}

// migrate archives rec and evicts it only after the archive succeeded.
func (c *Controller) migrate(ctx context.Context, rec inventory.FileRecord) (string, error) {
	key, err := c.archiver.Archive(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}
	if err := c.evictor.Evict(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEvictFailed, err)
	}
	return key, nil
}

func (c *Controller) fail(ctx context.Context, report *Report, st *run, rec inventory.FileRecord, err error) {
	stage := "archive"
	if errors.Is(err, ErrEvictFailed) {
		stage = "evict"
	}
	c.opts.Recorder.ObserveFailure(stage)

	st.attempts[rec.ID]++
	attempts := st.attempts[rec.ID]
	errutil.LogMsg(ctx, err, "Migration attempt failed",
		"file_id", rec.ID,
		"attempt", attempts,
		"max_attempts", c.opts.MaxAttempts,
	)

	if attempts >= c.opts.MaxAttempts {
		st.skipped[rec.ID] = true
		report.Skipped = append(report.Skipped, Skipped{
			ID:        rec.ID,
			Name:      rec.Name,
			Size:      rec.Size,
			Attempts:  attempts,
			LastError: err.Error(),
		})
		logger := logctx.FromContext(ctx)
		logger.Warn().Str("file_id", rec.ID).Int("attempts", attempts).Msg("Skipping file for the rest of the run")
	}
}

func (c *Controller) finish(ctx context.Context, report *Report, st *run, runErr error) (*Report, error) {
	report.FinishedAt = time.Now()
	if st != nil {
		report.TotalAfter = st.working.TotalSize()
	}

	switch {
	case errors.Is(runErr, ErrListingFailed):
		report.Result = ResultFailed
	case errors.Is(runErr, ErrQuotaUnmet):
		report.Result = ResultQuotaUnmet
	case runErr != nil:
		report.Result = ResultCanceled
	case report.Acted():
		report.Result = ResultMigrated
	default:
		report.Result = ResultNoop
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}

	if st != nil {
		c.opts.Recorder.ObserveUsage(report.TotalAfter, report.Limit, report.Target)
	}
	c.opts.Recorder.ObserveRun(report.Result)

	if c.opts.Journal != nil {
		jctx := context.WithoutCancel(ctx)
		errutil.LogMsg(jctx, c.opts.Journal.RecordRun(jctx, report), "Failed to journal run")
	}

	logger := logctx.FromContext(ctx)
	event := logger.Info()
	if runErr != nil {
		event = logger.Warn().Err(runErr)
	}
	event.
		Str("result", report.Result).
		Int("files_removed", report.FilesRemoved).
		Uint64("bytes_saved", report.BytesSaved).
		Int("skipped", len(report.Skipped)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Run finished")

	return report, runErr
}

type nopRecorder struct{}

func (nopRecorder) ObserveUsage(total, limit, target uint64) {}
func (nopRecorder) ObserveMigration(size uint64)             {}
func (nopRecorder) ObserveFailure(stage string)              {}
func (nopRecorder) ObserveRun(result string)                 {}
