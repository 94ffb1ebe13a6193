package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"biru/internal/ipc"
	"biru/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and pipeline counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				ping, err := client.Ping()
				if err != nil {
					return err
				}
				status, err := client.Status()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				ready := "ready"
				if !status.Ready {
					ready = "degraded"
				}
				fmt.Fprintf(out, "Daemon %s (%s), up %s, %d queued work items\n",
					ping.Version, ready, (time.Duration(ping.UptimeSec) * time.Second).String(), status.QueuedWork)

				for name, detail := range status.Stages {
					if detail != "ok" {
						fmt.Fprintf(out, "stage %s: %s\n", name, detail)
					}
				}

				rows := buildCountRows(status)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Pipeline is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Entity", "Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				if status.Metrics > 0 {
					fmt.Fprintf(out, "%d metrics recorded\n", status.Metrics)
				}
				return nil
			})
		},
	}
}

func buildCountRows(status ipc.StatusReply) [][]string {
	var rows [][]string
	appendRows := func(entity string, counts map[store.Status]int) {
		keys := make([]string, 0, len(counts))
		for status := range counts {
			keys = append(keys, string(status))
		}
		sort.Strings(keys)
		for _, key := range keys {
			if counts[store.Status(key)] == 0 {
				continue
			}
			rows = append(rows, []string{entity, colorizeStatus(key), fmt.Sprintf("%d", counts[store.Status(key)])})
		}
	}
	appendRows("asset", status.Assets)
	appendRows("clip", status.Clips)
	appendRows("post", status.Posts)
	return rows
}
