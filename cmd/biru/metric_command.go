package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"biru/internal/ipc"
	"biru/internal/store"
)

func newMetricCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metric",
		Short: "Record post performance metrics",
	}

	cmd.AddCommand(newMetricRecordCommand(ctx))
	cmd.AddCommand(newMetricListCommand(ctx))
	return cmd
}

func newMetricListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <post-id>",
		Short: "List recorded metrics for a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			return ctx.withReader(func(client *ipc.Client, st *store.Store) error {
				var metrics []ipc.MetricRow
				if client != nil {
					metrics, err = client.ListMetrics(id)
				} else {
					metrics, err = readMetrics(cmd, st, id)
				}
				if err != nil {
					return err
				}
				if len(metrics) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No metrics recorded for this post")
					return nil
				}
				rows := make([][]string, 0, len(metrics))
				for _, metric := range metrics {
					rows = append(rows, []string{
						fmt.Sprintf("%d", metric.ID),
						metric.MetricType,
						fmt.Sprintf("%.0f", metric.Value),
						metric.ObservedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Value", "Observed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func readMetrics(cmd *cobra.Command, st *store.Store, postID int64) ([]ipc.MetricRow, error) {
	metrics, err := st.MetricsForPost(cmd.Context(), postID)
	if err != nil {
		return nil, err
	}
	rows := make([]ipc.MetricRow, 0, len(metrics))
	for _, metric := range metrics {
		rows = append(rows, ipc.MetricRow{
			ID:         metric.ID,
			MetricType: metric.MetricType,
			Value:      metric.Value,
			ObservedAt: metric.ObservedAt.Format(time.RFC3339),
		})
	}
	return rows, nil
}

func newMetricRecordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record <post-id> <type> <value>",
		Short: "Record one metric observation (views, likes, shares)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil || value < 0 {
				return fmt.Errorf("invalid metric value %q", args[2])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				metric, err := client.RecordMetric(id, args[1], value)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s=%.0f for post %d; prior %s now %.3f over %d samples\n",
					metric.MetricType, metric.Value, metric.PostID, metric.Key, metric.Weight, metric.SampleCount)
				return nil
			})
		},
	}
}

func newTellCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tell <message...>",
		Short: "Send a chat-style command to the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := ""
			for i, arg := range args {
				if i > 0 {
					message += " "
				}
				message += arg
			}
			return ctx.withClient(func(client *ipc.Client) error {
				reply, err := client.Tell(message)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
}
