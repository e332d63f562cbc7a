// Package scheduler triggers quota runs on a cron schedule and on demand,
// never more than one at a time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"golang.org/x/sync/singleflight"

	"github.com/lucasew/slackoffload/internal/errutil"
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/logctx"
)

// DefaultSchedule runs once a day at 10:00 local time.
const DefaultSchedule = "0 10 * * *"

const runKey = "run"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// RunFunc performs one run. onDemand is false for scheduled runs.
type RunFunc func(ctx context.Context, onDemand bool) (*eviction.Report, error)

type Scheduler struct {
	run      RunFunc
	schedule cron.Schedule
	group    singleflight.Group

	mu   sync.Mutex
	base context.Context
}

// New parses spec as a five field cron expression or descriptor.
func New(spec string, run RunFunc) (*Scheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		run:      run,
		schedule: schedule,
		base:     context.Background(),
	}, nil
}

// Next returns the next scheduled activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Trigger starts a run, or joins the one already in flight. shared reports
// whether the result was handed to more than one caller. The run itself is
// bound to the scheduler's lifetime, not to ctx; ctx only limits the wait.
func (s *Scheduler) Trigger(ctx context.Context, onDemand bool) (report *eviction.Report, shared bool, err error) {
	runCtx := logctx.WithLogger(s.baseContext(), logctx.FromContext(ctx))

	ch := s.group.DoChan(runKey, func() (any, error) {
		return s.run(runCtx, onDemand)
	})

	select {
	case res := <-ch:
		report, _ = res.Val.(*eviction.Report)
		return report, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Start runs scheduled triggers until ctx is done. Runs in flight are
// canceled together with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, shared, err := s.Trigger(ctx, false)
		errutil.LogMsg(ctx, err, "Scheduled run finished with error", "shared", shared)
	}))
	c.Start()
	defer c.Stop()

	logger := logctx.FromContext(ctx)
	logger.Info().Time("next", s.Next(time.Now())).Msg("Scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}
