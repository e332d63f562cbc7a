package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lucasew/slackoffload/internal/app"
	"github.com/lucasew/slackoffload/internal/errutil"
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/logctx"
	"github.com/lucasew/slackoffload/internal/slack"
)

var cfgFile string

// logOutput receives every log line, command errors included.
var logOutput io.Writer = os.Stderr

var rootCmd = &cobra.Command{
	Use:   "slackoffload",
	Short: "Keeps a Slack workspace under its file quota",
	Long: `slackoffload archives Slack files to S3 and deletes them from Slack
whenever the total size of the workspace's files exceeds a quota.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logctx.New(logOutput, viper.GetString("log-level"), viper.GetString("log-format"))
		if err != nil {
			return err
		}
		logctx.SetDefault(logger)
		cmd.SetContext(logctx.WithLogger(cmd.Context(), logger))
		return nil
	},
}

func Execute() {
	if err := execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree and reports its error through the
// configured logger.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	errutil.ReportError(ctx, err, "Command failed")
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, toml or json)")

	flags.String("slack-api-token", "", "Slack API token")
	flags.String("slack-api-url", slack.DefaultBaseURL, "Slack Web API root")
	flags.String("aws-access-key-id", "", "AWS access key id (default AWS chain when empty)")
	flags.String("aws-secret-access-key", "", "AWS secret access key")
	flags.String("s3-region-name", "", "S3 region")
	flags.String("s3-bucket", "", "S3 bucket receiving archived files")
	flags.String("s3-prefix", "", "Key prefix inside the bucket; keys are {prefix}/{id}-{name} without a leading or doubled slash")
	flags.String("s3-endpoint", "", "S3-compatible endpoint (path-style)")
	flags.String("archive-dir", "", "Archive into this directory instead of S3")
	flags.String("max-total-file-size", "", "Quota, e.g. 5GB, 500MiB or plain bytes")
	flags.String("file-size-buffer", "0", "Extra bytes to free once a run has to act")
	flags.String("room", "", "Channel receiving notifications")
	flags.String("eviction-strategy", eviction.DefaultStrategy,
		fmt.Sprintf("Which file to migrate first (%s)", strings.Join(eviction.Strategies(), ", ")))
	flags.Int("max-attempts", eviction.DefaultMaxAttempts, "Attempts per file before it is skipped for the run")
	flags.String("max-object-size", "1GiB", "Largest file held in memory while archiving")
	flags.Uint("list-attempts", 3, "Attempts per files.list page")
	flags.Duration("call-timeout", 2*time.Minute, "Deadline of every single remote call")
	flags.Duration("run-timeout", time.Hour, "Deadline of a whole run")
	flags.String("journal", "", "Sqlite journal of migrations (disabled when empty)")
	flags.String("ca-file", "", "Extra PEM certificates to trust")
	flags.String("log-level", "info", "Log level")
	flags.String("log-format", "json", "Log format (json, console)")

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" {
			mustBindPFlag(f.Name, f)
		}
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			errutil.ReportError(context.Background(), err, "Failed to read config file", "path", cfgFile)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("SLACKOFFLOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", key, err))
	}
}

// loadConfig builds an app.Config from flags, environment and config file.
func loadConfig() (app.Config, error) {
	cfg := app.Config{
		SlackAPIToken:      viper.GetString("slack-api-token"),
		SlackAPIURL:        viper.GetString("slack-api-url"),
		AWSAccessKeyID:     viper.GetString("aws-access-key-id"),
		AWSSecretAccessKey: viper.GetString("aws-secret-access-key"),
		S3Region:           viper.GetString("s3-region-name"),
		S3Bucket:           viper.GetString("s3-bucket"),
		S3Prefix:           viper.GetString("s3-prefix"),
		S3Endpoint:         viper.GetString("s3-endpoint"),
		ArchiveDir:         viper.GetString("archive-dir"),
		Room:               viper.GetString("room"),
		EvictionStrategy:   viper.GetString("eviction-strategy"),
		MaxAttempts:        viper.GetInt("max-attempts"),
		ListAttempts:       viper.GetUint("list-attempts"),
		CallTimeout:        viper.GetDuration("call-timeout"),
		RunTimeout:         viper.GetDuration("run-timeout"),
		Journal:            viper.GetString("journal"),
		CAFile:             viper.GetString("ca-file"),
	}

	sizes := []struct {
		key string
		dst *uint64
	}{
		{"max-total-file-size", &cfg.MaxTotalFileSize},
		{"file-size-buffer", &cfg.FileSizeBuffer},
		{"max-object-size", &cfg.MaxObjectSize},
	}
	for _, s := range sizes {
		n, err := app.ParseSize(viper.GetString(s.key))
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", s.key, err)
		}
		*s.dst = n
	}

	return cfg, nil
}
