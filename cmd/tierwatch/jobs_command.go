package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"tierwatch/internal/jobstore"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent ingestion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{"limit": []string{strconv.Itoa(limit)}}
			var payload struct {
				Jobs []*jobstore.Job `json:"jobs"`
			}
			if err := ctx.getJSON("/api/jobs", query, &payload); err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload.Jobs)
			}
			if len(payload.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no ingestion jobs recorded")
				return nil
			}

			rows := make([][]string, 0, len(payload.Jobs))
			for _, job := range payload.Jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					string(job.Kind),
					job.Collection,
					string(job.State),
					strconv.Itoa(job.FileCount),
					job.SourcePath,
					formatTime(job.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Kind", "Collection", "State", "Files", "Source", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit raw JSON")
	return cmd
}
