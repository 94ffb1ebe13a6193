// Package commands is the thin intent-classification boundary: it maps the
// creator's short chat-style commands onto the core primitives. The core
// never parses free text; everything funnels through the recognized intents
// here.
package commands

import (
	"strconv"
	"strings"

	"biru/internal/services"
	"biru/internal/store"
)

// Kind enumerates the recognized intents.
type Kind string

const (
	KindListTopClips Kind = "list_top_clips"
	KindScheduleNow  Kind = "schedule_now"
	KindGetStatus    Kind = "get_status"
	KindRecordMetric Kind = "record_metric"
	KindHelp         Kind = "help"
)

// Intent is one classified command with its extracted arguments.
type Intent struct {
	Kind       Kind
	AssetID    int64
	ClipID     int64
	PostID     int64
	EntityType store.EntityType
	EntityID   int64
	Platform   string
	MetricType string
	Value      float64
	Count      int
}

const defaultTopCount = 5

// Classify maps a raw message to an intent. Unrecognized phrasings fail
// with a validation error carrying the help hint.
func Classify(message string) (Intent, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(message)))
	if len(fields) == 0 {
		return Intent{}, classifyErr("empty command")
	}

	switch fields[0] {
	case "help", "?":
		return Intent{Kind: KindHelp}, nil

	case "clips", "top":
		// "clips <assetID> [n]" or "top <n> clips <assetID>"
		return classifyTop(fields)

	case "schedule", "post", "publish":
		// "schedule <clipID> [on] <platform>"
		return classifySchedule(fields)

	case "status":
		// "status <asset|clip|post> <id>"
		return classifyStatus(fields)

	case "metric", "views", "likes", "shares":
		// "metric <postID> <type> <value>" or "views <postID> <value>"
		return classifyMetric(fields)
	}
	return Intent{}, classifyErr("unrecognized command " + strconv.Quote(fields[0]))
}

func classifyTop(fields []string) (Intent, error) {
	intent := Intent{Kind: KindListTopClips, Count: defaultTopCount}
	var numbers []int64
	for _, field := range fields[1:] {
		if field == "clips" {
			continue
		}
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return Intent{}, classifyErr("expected a number, got " + strconv.Quote(field))
		}
		numbers = append(numbers, n)
	}
	switch len(numbers) {
	case 1:
		intent.AssetID = numbers[0]
	case 2:
		if fields[0] == "top" {
			intent.Count = int(numbers[0])
			intent.AssetID = numbers[1]
		} else {
			intent.AssetID = numbers[0]
			intent.Count = int(numbers[1])
		}
	default:
		return Intent{}, classifyErr("usage: clips <assetID> [n]")
	}
	return intent, nil
}

func classifySchedule(fields []string) (Intent, error) {
	args := fields[1:]
	filtered := args[:0]
	for _, field := range args {
		if field == "on" || field == "to" || field == "clip" {
			continue
		}
		filtered = append(filtered, field)
	}
	if len(filtered) != 2 {
		return Intent{}, classifyErr("usage: schedule <clipID> <platform>")
	}
	clipID, err := strconv.ParseInt(filtered[0], 10, 64)
	if err != nil {
		return Intent{}, classifyErr("expected a clip id, got " + strconv.Quote(filtered[0]))
	}
	return Intent{Kind: KindScheduleNow, ClipID: clipID, Platform: strings.ToUpper(filtered[1])}, nil
}

func classifyStatus(fields []string) (Intent, error) {
	if len(fields) != 3 {
		return Intent{}, classifyErr("usage: status <asset|clip|post> <id>")
	}
	var entityType store.EntityType
	switch fields[1] {
	case "asset", "video", "upload":
		entityType = store.EntityAsset
	case "clip", "short":
		entityType = store.EntityClip
	case "post":
		entityType = store.EntityPost
	default:
		return Intent{}, classifyErr("unknown entity " + strconv.Quote(fields[1]))
	}
	id, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Intent{}, classifyErr("expected an id, got " + strconv.Quote(fields[2]))
	}
	return Intent{Kind: KindGetStatus, EntityType: entityType, EntityID: id}, nil
}

func classifyMetric(fields []string) (Intent, error) {
	metricType := ""
	args := fields[1:]
	if fields[0] != "metric" {
		metricType = fields[0]
	} else {
		if len(args) != 3 {
			return Intent{}, classifyErr("usage: metric <postID> <type> <value>")
		}
		metricType = args[1]
		args = []string{args[0], args[2]}
	}
	if len(args) != 2 {
		return Intent{}, classifyErr("usage: " + metricType + " <postID> <value>")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return Intent{}, classifyErr("expected a post id, got " + strconv.Quote(args[0]))
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return Intent{}, classifyErr("expected a value, got " + strconv.Quote(args[1]))
	}
	return Intent{Kind: KindRecordMetric, PostID: postID, MetricType: metricType, Value: value}, nil
}

func classifyErr(message string) error {
	return services.Wrap(services.ErrValidation, "commands", "classify", message+"; try 'help'", nil)
}
