package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"biru/internal/api"
	"biru/internal/ipc"
	"biru/internal/store"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List ingested assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withReader(func(client *ipc.Client, st *store.Store) error {
				var assets []api.AssetView
				if client != nil {
					assets, err = client.ListAssets(statuses...)
				} else {
					assets, err = readAssets(cmd, st, statuses)
				}
				if err != nil {
					return err
				}
				if len(assets) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No assets")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Duration", "Progress", "Created"},
					buildAssetRows(assets),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")

	cmd.AddCommand(newAssetStatusCommand(ctx))
	return cmd
}

func readAssets(cmd *cobra.Command, st *store.Store, statuses []store.Status) ([]api.AssetView, error) {
	assets, err := st.ListAssets(cmd.Context(), statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]api.AssetView, 0, len(assets))
	for _, asset := range assets {
		views = append(views, api.AssetView{
			ID:              asset.ID,
			Title:           asset.Title,
			Source:          asset.Source,
			DurationSeconds: asset.DurationSeconds,
			Status:          string(asset.Status),
			ProgressStage:   asset.ProgressStage,
			ProgressPercent: asset.ProgressPercent,
			Error:           asset.ErrorMessage,
			CreatedAt:       asset.CreatedAt,
		})
	}
	return views, nil
}

func buildAssetRows(assets []api.AssetView) [][]string {
	rows := make([][]string, 0, len(assets))
	for _, asset := range assets {
		progress := asset.ProgressStage
		if progress != "" && asset.ProgressPercent > 0 {
			progress = fmt.Sprintf("%s (%.0f%%)", asset.ProgressStage, asset.ProgressPercent)
		}
		if asset.Error != "" {
			progress = truncateCell(asset.Error, 40)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", asset.ID),
			truncateCell(asset.Title, 40),
			colorizeStatus(asset.Status),
			formatSeconds(asset.DurationSeconds),
			progress,
			formatTimestamp(asset.CreatedAt),
		})
	}
	return rows
}

func newAssetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show one asset's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "asset")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.GetStatus(store.EntityAsset, id)
				if err != nil {
					return err
				}
				printStatusView(cmd, status)
				return nil
			})
		},
	}
}

func printStatusView(cmd *cobra.Command, status api.StatusView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d: %s\n", status.EntityType, status.ID, colorizeStatus(string(status.Status)))
	if status.Detail != "" {
		fmt.Fprintln(out, status.Detail)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "error: %s\n", status.Error)
	}
}
