package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"biru/internal/api"
	"biru/internal/ipc"
	"biru/internal/store"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clips",
		Short: "Inspect selected clips",
	}

	cmd.AddCommand(newClipsTopCommand(ctx))
	cmd.AddCommand(newClipShowCommand(ctx))
	return cmd
}

func newClipsTopCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "top <asset-id>",
		Short: "Show an asset's highest-scoring clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "asset")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				clips, err := client.ListTopClips(id, count)
				if err != nil {
					return err
				}
				if len(clips) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No clips for this asset")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Window", "Duration", "Score", "Category", "Status", "Caption"},
					buildClipRows(clips),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of clips to show")
	return cmd
}

func buildClipRows(clips []api.ClipView) [][]string {
	rows := make([][]string, 0, len(clips))
	for _, clip := range clips {
		rows = append(rows, []string{
			fmt.Sprintf("%d", clip.ID),
			fmt.Sprintf("%.1f-%.1fs", clip.StartSeconds, clip.EndSeconds),
			formatSeconds(clip.DurationSeconds),
			fmt.Sprintf("%.3f", clip.Score),
			clip.Category,
			colorizeStatus(clip.Status),
			truncateCell(clip.Caption, 40),
		})
	}
	return rows
}

func newClipShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <clip-id>",
		Short: "Show one clip's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "clip")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.GetStatus(store.EntityClip, id)
				if err != nil {
					return err
				}
				printStatusView(cmd, status)
				return nil
			})
		},
	}
}
