package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lucasew/slackoffload/internal/app"
	"github.com/lucasew/slackoffload/internal/errutil"
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/notify"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one quota check now",
	Long: `run lists the workspace's files once and, when they exceed the quota,
archives and deletes files until usage is back under the target. The outcome
is printed and posted to the configured room, also when nothing had to be done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		showProgress, _ := cmd.Flags().GetBool("progress")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var bar *progressbar.ProgressBar
		hooks := app.Hooks{}
		if showProgress {
			hooks.OnListed = func(total, limit, target uint64) {
				if total <= limit {
					return
				}
				bar = newProgressBar(int64(total - target))
			}
			hooks.OnMigrated = func(m eviction.Migration) {
				if bar != nil {
					errutil.LogMsg(ctx, bar.Add64(int64(m.Size)), "Failed to update progress bar")
				}
			}
		}

		o, cleanup, err := app.New(ctx, cfg, hooks)
		if err != nil {
			return err
		}
		defer cleanup()

		report, runErr := o.Run(ctx, true)
		if bar != nil {
			errutil.LogMsg(ctx, bar.Finish(), "Failed to finish progress bar")
		}

		if asJSON && report != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else if report != nil {
			if text, ok := notify.Message(report, true); ok {
				fmt.Println(text)
			}
		}
		return runErr
	},
}

func newProgressBar(max int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("offloading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(os.Stderr, "\n")
		}),
	)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("progress", true, "Show a progress bar on stderr")
	runCmd.Flags().Bool("json", false, "Print the run report as JSON")
}
