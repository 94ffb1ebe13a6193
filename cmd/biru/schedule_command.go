package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"biru/internal/api"
	"biru/internal/ipc"
	"biru/internal/store"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "schedule <clip-id>",
		Short: "Book the next open slot for a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "clip")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				post, err := client.ScheduleNow(id, platform)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled post %d on %s at %s (slot %s)\n",
					post.ID, post.Platform, formatTimestamp(post.ScheduledAt), post.SlotKey)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Target platform (defaults to the first configured platform)")
	return cmd
}

func newPostsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List the posting calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withReader(func(client *ipc.Client, st *store.Store) error {
				var posts []api.PostView
				if client != nil {
					posts, err = client.ListPosts(statuses...)
				} else {
					posts, err = readPosts(cmd, st, statuses)
				}
				if err != nil {
					return err
				}
				if len(posts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No posts scheduled")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Clip", "Platform", "Scheduled", "Posted", "Status"},
					buildPostRows(posts),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")

	cmd.AddCommand(newPostShowCommand(ctx))
	return cmd
}

func readPosts(cmd *cobra.Command, st *store.Store, statuses []store.Status) ([]api.PostView, error) {
	posts, err := st.ListPosts(cmd.Context(), statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]api.PostView, 0, len(posts))
	for _, post := range posts {
		views = append(views, api.PostView{
			ID:          post.ID,
			ClipID:      post.ClipID,
			Platform:    post.Platform,
			SlotKey:     post.SlotKey,
			ScheduledAt: post.ScheduledAt,
			PostedAt:    post.PostedAt,
			Status:      string(post.Status),
		})
	}
	return views, nil
}

func buildPostRows(posts []api.PostView) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, post := range posts {
		posted := "-"
		if post.PostedAt != nil {
			posted = formatTimestamp(*post.PostedAt)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", post.ID),
			fmt.Sprintf("%d", post.ClipID),
			post.Platform,
			formatTimestamp(post.ScheduledAt),
			posted,
			colorizeStatus(post.Status),
		})
	}
	return rows
}

func newPostShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <post-id>",
		Short: "Show one post's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "post")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.GetStatus(store.EntityPost, id)
				if err != nil {
					return err
				}
				printStatusView(cmd, status)
				return nil
			})
		},
	}
}
