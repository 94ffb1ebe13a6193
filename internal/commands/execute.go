package commands

import (
	"context"
	"fmt"
	"strings"

	"biru/internal/api"
)

const helpText = `commands:
  clips <assetID> [n]           best clips for an asset
  schedule <clipID> <platform>  book the next open slot
  status <asset|clip|post> <id> lifecycle status
  metric <postID> <type> <value> record performance
  views|likes|shares <postID> <value>
  help`

// Execute runs a classified intent against the core and renders a short
// chat-style reply.
func Execute(ctx context.Context, service *api.Service, intent Intent) (string, error) {
	switch intent.Kind {
	case KindHelp:
		return helpText, nil

	case KindListTopClips:
		clips, err := service.ListTopClips(ctx, intent.AssetID, intent.Count)
		if err != nil {
			return "", err
		}
		if len(clips) == 0 {
			return fmt.Sprintf("no clips yet for asset %d", intent.AssetID), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "top %d clips for asset %d:\n", len(clips), intent.AssetID)
		for i, clip := range clips {
			fmt.Fprintf(&b, "%d. clip %d [%s] score %.2f (%.0fs-%.0fs)",
				i+1, clip.ID, clip.Status, clip.Score, clip.StartSeconds, clip.EndSeconds)
			if clip.Caption != "" {
				fmt.Fprintf(&b, " %q", clip.Caption)
			}
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case KindScheduleNow:
		post, err := service.ScheduleNow(ctx, intent.ClipID, intent.Platform)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("clip %d booked: %s slot %s", post.ClipID, post.Platform, post.SlotKey), nil

	case KindGetStatus:
		status, err := service.GetStatus(ctx, intent.EntityType, intent.EntityID)
		if err != nil {
			return "", err
		}
		reply := fmt.Sprintf("%s %d is %s", status.EntityType, status.ID, status.Status)
		if status.Detail != "" {
			reply += " (" + status.Detail + ")"
		}
		if status.Error != "" {
			reply += ": " + status.Error
		}
		return reply, nil

	case KindRecordMetric:
		view, err := service.RecordMetric(ctx, intent.PostID, intent.MetricType, intent.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("recorded %s=%.0f for post %d; %s now %.3f over %d samples",
			view.MetricType, view.Value, view.PostID, view.Key, view.Weight, view.SampleCount), nil
	}
	return "", classifyErr(fmt.Sprintf("unhandled intent %q", intent.Kind))
}

// Tell classifies and executes in one step.
func Tell(ctx context.Context, service *api.Service, message string) (string, error) {
	intent, err := Classify(message)
	if err != nil {
		return "", err
	}
	return Execute(ctx, service, intent)
}
