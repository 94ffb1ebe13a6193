package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"biru/internal/dispatch"
	"biru/internal/ipc"
	"biru/internal/store"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed assets and clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				count, err := client.RetryFailed()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed entities\n", count)
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <asset-id>",
		Short: "Discard an asset's clips and rerun analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "asset")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.ResetAsset(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d reset for re-analysis\n", id)
				return nil
			})
		},
	}
}

func newWorkCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Worker-side queue operations",
	}

	cmd.AddCommand(newWorkPullCommand(ctx))
	cmd.AddCommand(newWorkCompleteCommand(ctx))
	return cmd
}

func newWorkPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull the next queued work item as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				item, ok, err := client.PullWork()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "{}")
					return nil
				}
				encoded, err := json.Marshal(item)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			})
		},
	}
}

func newWorkCompleteCommand(ctx *commandContext) *cobra.Command {
	var entityTypeFlag string
	var entityID int64
	var payload string

	cmd := &cobra.Command{
		Use:   "complete <correlation-id> <SUCCESS|FAILURE>",
		Short: "Report a work item completion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome := dispatch.Outcome(args[1])
			if outcome != dispatch.OutcomeSuccess && outcome != dispatch.OutcomeFailure {
				return fmt.Errorf("outcome must be SUCCESS or FAILURE, got %q", args[1])
			}
			completion := dispatch.Completion{
				CorrelationID: args[0],
				Outcome:       outcome,
				ResultPayload: payload,
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.ReportCompletion(completion, store.EntityType(entityTypeFlag), entityID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Completion reported")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entityTypeFlag, "entity-type", "", "Entity type for late callbacks (asset, clip, post)")
	cmd.Flags().Int64Var(&entityID, "entity-id", 0, "Entity id for late callbacks")
	cmd.Flags().StringVar(&payload, "payload", "", "Result payload JSON")
	return cmd
}
