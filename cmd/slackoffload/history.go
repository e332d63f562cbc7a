package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lucasew/slackoffload/internal/app"
	"github.com/lucasew/slackoffload/internal/db"
	"github.com/lucasew/slackoffload/internal/errutil"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Shows past runs, or where a file was archived",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("journal")
		if path == "" {
			return fmt.Errorf("%w: journal", app.ErrConfigMissing)
		}
		fileID, _ := cmd.Flags().GetString("file")
		limit, _ := cmd.Flags().GetInt("limit")

		journal, err := db.Open(path)
		if err != nil {
			return err
		}
		defer func() {
			errutil.LogMsg(cmd.Context(), journal.Close(), "Failed to close journal")
		}()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		if fileID != "" {
			entries, err := journal.FindFile(cmd.Context(), fileID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("file not found in journal: " + fileID)
			}
			fmt.Fprintln(w, "MIGRATED\tNAME\tSIZE\tLOCATION\tKEY\tRUN")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.MigratedAt.Format(time.RFC3339), e.Name, humanize.IBytes(e.Size), e.Location, e.Key, e.RunID)
			}
			return w.Flush()
		}

		runs, err := journal.RecentRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "STARTED\tRESULT\tREMOVED\tSAVED\tSKIPPED\tBEFORE\tAFTER\tRUN")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
				r.StartedAt.Format(time.RFC3339), r.Result, r.FilesRemoved, humanize.IBytes(r.BytesSaved),
				r.Skipped, humanize.IBytes(r.TotalBefore), humanize.IBytes(r.TotalAfter), r.RunID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("file", "", "Show where this Slack file id was archived")
	historyCmd.Flags().Int("limit", 20, "Number of runs to show")
}
