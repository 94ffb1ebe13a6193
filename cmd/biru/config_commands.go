package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"biru/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"data_dir", cfg.Paths.DataDir},
				{"log_dir", cfg.Paths.LogDir},
				{"database", cfg.DatabasePath()},
				{"socket", cfg.SocketPath()},
				{"min_clips", fmt.Sprintf("%d", cfg.Selection.MinClips)},
				{"max_clips", fmt.Sprintf("%d", cfg.Selection.MaxClips)},
				{"min_gap_seconds", fmt.Sprintf("%.1f", cfg.Selection.MinGapSeconds)},
				{"score_threshold", fmt.Sprintf("%.2f", cfg.Selection.ScoreThreshold)},
				{"smoothing_alpha", fmt.Sprintf("%.2f", cfg.Memory.SmoothingAlpha)},
				{"horizon_days", fmt.Sprintf("%d", cfg.Schedule.HorizonDays)},
				{"platforms", strings.Join(cfg.Schedule.Platforms, ", ")},
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
