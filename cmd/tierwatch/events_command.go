package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tierwatch/internal/events"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent pipeline events",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{"limit": []string{strconv.Itoa(limit)}}
			var payload struct {
				Events []events.Record `json:"events"`
			}
			if err := ctx.getJSON("/api/events", query, &payload); err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload.Events)
			}
			if len(payload.Events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no events recorded")
				return nil
			}

			rows := make([][]string, 0, len(payload.Events))
			for _, rec := range payload.Events {
				rows = append(rows, []string{
					formatTime(rec.Timestamp),
					string(rec.EventType),
					eventSubject(rec),
					rec.Collection,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Time", "Event", "Subject", "Collection"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 30, "Maximum events to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit raw JSON")
	return cmd
}

func eventSubject(rec events.Record) string {
	switch {
	case rec.Path != "":
		return rec.Path
	case len(rec.Paths) == 1:
		return rec.Paths[0]
	case len(rec.Paths) > 1:
		return fmt.Sprintf("%s (+%d more)", rec.Paths[0], len(rec.Paths)-1)
	case rec.Tag != "":
		return strings.TrimSuffix(rec.Tag+"="+rec.Value, "=")
	default:
		return ""
	}
}
