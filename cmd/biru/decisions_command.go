package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"biru/internal/brain"
	"biru/internal/ipc"
	"biru/internal/store"
)

func newDecisionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Show the scheduling audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(func(client *ipc.Client, st *store.Store) error {
				var decisions []ipc.DecisionView
				var err error
				if client != nil {
					decisions, err = client.ListDecisions(limit)
				} else {
					decisions, err = readDecisions(cmd, st, limit)
				}
				if err != nil {
					return err
				}
				if len(decisions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scheduling decisions recorded")
					return nil
				}
				rows := make([][]string, 0, len(decisions))
				for _, decision := range decisions {
					rows = append(rows, []string{
						fmt.Sprintf("%d", decision.ID),
						fmt.Sprintf("%d", decision.PostID),
						decision.Platform,
						decision.ChosenSlot,
						truncateCell(decision.Rationale, 50),
						yesNo(decision.Verified),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Post", "Platform", "Slot", "Rationale", "Replays"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum decisions to show")
	return cmd
}

func readDecisions(cmd *cobra.Command, st *store.Store, limit int) ([]ipc.DecisionView, error) {
	decisions, err := st.ListDecisions(cmd.Context(), limit)
	if err != nil {
		return nil, err
	}
	views := make([]ipc.DecisionView, 0, len(decisions))
	for _, decision := range decisions {
		views = append(views, ipc.DecisionView{
			ID:         decision.ID,
			PostID:     decision.PostID,
			Platform:   decision.Platform,
			ChosenSlot: decision.ChosenSlot,
			Rationale:  decision.Rationale,
			CreatedAt:  decision.CreatedAt.Format(time.RFC3339),
			Verified:   brain.Replay(decision.InputsJSON, decision.ChosenSlot) == nil,
		})
	}
	return views, nil
}

func newMemoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "memory",
		Short: "Show learned performance priors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(func(client *ipc.Client, st *store.Store) error {
				var weights []ipc.WeightView
				var err error
				if client != nil {
					weights, err = client.ListWeights()
				} else {
					weights, err = readWeights(cmd, st)
				}
				if err != nil {
					return err
				}
				if len(weights) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No priors learned yet")
					return nil
				}
				rows := make([][]string, 0, len(weights))
				for _, weight := range weights {
					rows = append(rows, []string{
						weight.Category,
						weight.TimeSlot,
						weight.DurationBucket,
						fmt.Sprintf("%.3f", weight.Weight),
						fmt.Sprintf("%d", weight.SampleCount),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Category", "Time Slot", "Duration", "Weight", "Samples"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func readWeights(cmd *cobra.Command, st *store.Store) ([]ipc.WeightView, error) {
	weights, err := st.ListWeights(cmd.Context())
	if err != nil {
		return nil, err
	}
	views := make([]ipc.WeightView, 0, len(weights))
	for _, weight := range weights {
		views = append(views, ipc.WeightView{
			Category:       weight.Category,
			TimeSlot:       weight.TimeSlot,
			DurationBucket: weight.DurationBucket,
			Weight:         weight.Weight,
			SampleCount:    weight.SampleCount,
		})
	}
	return views, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
