package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tierwatch/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and monitor status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.Status
			if err := ctx.getJSON("/api/status", nil, &status); err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			mon := status.Monitor
			rows := [][]string{
				{"Running", fmt.Sprintf("%t", status.Running)},
				{"Watched roots", fmt.Sprintf("%v", mon.WatchedRoots)},
				{"Batch interval", mon.BatchInterval},
				{"Poll interval", mon.PollInterval},
				{"Pending events", fmt.Sprintf("%d", mon.PendingEvents)},
				{"Pending paths", fmt.Sprintf("%d", mon.PendingPaths)},
				{"Known paths", fmt.Sprintf("%d", mon.KnownPathsCount)},
				{"Tagged paths", fmt.Sprintf("%d", mon.TaggedPathsCount)},
				{"Last batch", formatTime(mon.LastBatchTime)},
				{"Last retroactive scan", formatTime(mon.LastRetroactiveScan)},
				{"Retroactive tags", fmt.Sprintf("%d", mon.FilesTaggedRetroactively)},
				{"CPU now/avg/max", fmt.Sprintf("%.1f%% / %.1f%% / %.1f%%", mon.CPU.Current, mon.CPU.Average, mon.CPU.Max)},
				{"Ledger DB", status.LedgerDBPath},
				{"Event log", status.EventLogPath},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit raw JSON")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
