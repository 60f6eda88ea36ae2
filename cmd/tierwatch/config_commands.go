package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tierwatch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tierwatch configuration",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.cfgPath != "" {
				fmt.Fprintf(out, "config file: %s\n\n", ctx.cfgPath)
			}
			rows := [][]string{
				{"watch_roots", fmt.Sprintf("%v", cfg.Paths.WatchRoots)},
				{"hub_root", cfg.Paths.HubRoot},
				{"log_dir", cfg.Paths.LogDir},
				{"event_log", cfg.Paths.EventLog},
				{"api_bind", cfg.Paths.APIBind},
				{"hs_binary", cfg.Storage.Binary},
				{"batch_interval", cfg.BatchInterval().String()},
				{"fast_tier_objective", cfg.Placement.FastTierObjective},
				{"ingest_enabled", fmt.Sprintf("%t", cfg.Ingest.Enabled)},
				{"ingestor_url", cfg.Ingest.IngestorURL},
				{"retroactive_window", fmt.Sprintf("%02d:00-%02d:00 %s",
					cfg.Retroactive.WindowStartHour, cfg.Retroactive.WindowEndHour, cfg.Retroactive.Timezone)},
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Setting", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}
