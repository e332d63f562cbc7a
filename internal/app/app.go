package app

import (
	"context"
	"fmt"
	"math"

	"github.com/lucasew/slackoffload/internal/archive"
	"github.com/lucasew/slackoffload/internal/db"
	"github.com/lucasew/slackoffload/internal/errutil"
	"github.com/lucasew/slackoffload/internal/eviction"
	_ "github.com/lucasew/slackoffload/internal/eviction/largest"
	_ "github.com/lucasew/slackoffload/internal/eviction/newest"
	_ "github.com/lucasew/slackoffload/internal/eviction/oldest"
	"github.com/lucasew/slackoffload/internal/eviction/policy/maxsize"
	"github.com/lucasew/slackoffload/internal/fetcher"
	"github.com/lucasew/slackoffload/internal/httpclient"
	"github.com/lucasew/slackoffload/internal/logctx"
	"github.com/lucasew/slackoffload/internal/metrics"
	"github.com/lucasew/slackoffload/internal/notify"
	"github.com/lucasew/slackoffload/internal/repository"
	"github.com/lucasew/slackoffload/internal/slack"
)

// Hooks observe a run while it happens.
type Hooks struct {
	OnListed   func(total, limit, target uint64)
	OnMigrated func(m eviction.Migration)
}

// Offloader is a fully wired quota controller plus its reporting side.
type Offloader struct {
	Controller *eviction.Controller
	Notifier   *notify.Notifier
	Metrics    *metrics.Metrics

	// Journal is nil unless Config.Journal is set.
	Journal *db.DB
}

// New validates cfg and wires every client. The returned cleanup releases
// them and must be called once the Offloader is no longer used.
func New(ctx context.Context, cfg Config, hooks Hooks) (*Offloader, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	httpClient, err := httpclient.NewClient(0, cfg.CAFile)
	if err != nil {
		return nil, nil, err
	}

	sc := slack.NewClient(cfg.SlackAPIURL, cfg.SlackAPIToken, httpClient)
	sc.CallTimeout = cfg.CallTimeout
	if cfg.ListAttempts > 0 {
		sc.ListAttempts = cfg.ListAttempts
	}

	target, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	maxObject := int64(fetcher.DefaultMaxSize)
	if cfg.MaxObjectSize > 0 && cfg.MaxObjectSize < math.MaxInt64 {
		maxObject = int64(cfg.MaxObjectSize)
	}
	archiver := archive.New(fetcher.NewFetcher(httpClient, cfg.SlackAPIToken, maxObject), target, cfg.S3Prefix)
	archiver.MaxObjectSize = uint64(maxObject)
	archiver.CallTimeout = cfg.CallTimeout

	o := &Offloader{
		Notifier: notify.New(sc, cfg.Room),
		Metrics:  metrics.NewMetrics(),
	}
	cleanup := func() {}

	opts := eviction.Options{
		Strategy:    cfg.EvictionStrategy,
		MaxAttempts: cfg.MaxAttempts,
		RunTimeout:  cfg.RunTimeout,
		Location:    target.Location(),
		Recorder:    o.Metrics,
		OnListed:    hooks.OnListed,
		OnMigrated:  hooks.OnMigrated,
	}

	if cfg.Journal != "" {
		journal, err := db.Open(cfg.Journal)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open journal at %s: %w", cfg.Journal, err)
		}
		o.Journal = journal
		opts.Journal = journal
		cleanup = func() {
			errutil.LogMsg(ctx, journal.Close(), "Failed to close journal")
		}
	}

	controller, err := eviction.NewController(sc, archiver, sc,
		&maxsize.Policy{MaxBytes: cfg.MaxTotalFileSize, Buffer: cfg.FileSizeBuffer}, opts)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize eviction strategy: %w", err)
	}
	o.Controller = controller

	logger := logctx.FromContext(ctx)
	logger.Info().
		Str("target", target.Location()).
		Str("strategy", opts.Strategy).
		Uint64("max_total_file_size", cfg.MaxTotalFileSize).
		Uint64("file_size_buffer", cfg.FileSizeBuffer).
		Bool("journal", o.Journal != nil).
		Msg("Offloader configured")

	return o, cleanup, nil
}

func newRepository(ctx context.Context, cfg Config) (repository.Repository, error) {
	if cfg.ArchiveDir != "" {
		return repository.NewLocalRepository(cfg.ArchiveDir), nil
	}
	repo, err := repository.NewS3Repository(ctx, repository.S3Options{
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Bucket:          cfg.S3Bucket,
		Endpoint:        cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 target: %w", err)
	}
	return repo, nil
}

// Run performs one quota run and posts its notification. Notification
// failures are logged; the run's own error is returned with its Report.
func (o *Offloader) Run(ctx context.Context, onDemand bool) (*eviction.Report, error) {
	report, err := o.Controller.Run(ctx)
	if report != nil {
		_, notifyErr := o.Notifier.Notify(ctx, report, onDemand)
		errutil.LogMsg(ctx, notifyErr, "Failed to post notification")
	}
	return report, err
}
