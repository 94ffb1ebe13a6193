package commands

import (
	"errors"
	"testing"

	"biru/internal/services"
	"biru/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		message string
		want    Intent
	}{
		{"clips 3", Intent{Kind: KindListTopClips, AssetID: 3, Count: 5}},
		{"clips 3 10", Intent{Kind: KindListTopClips, AssetID: 3, Count: 10}},
		{"top 7 clips 3", Intent{Kind: KindListTopClips, AssetID: 3, Count: 7}},
		{"schedule 12 youtube", Intent{Kind: KindScheduleNow, ClipID: 12, Platform: "YOUTUBE"}},
		{"post 12 on instagram", Intent{Kind: KindScheduleNow, ClipID: 12, Platform: "INSTAGRAM"}},
		{"status asset 4", Intent{Kind: KindGetStatus, EntityType: store.EntityAsset, EntityID: 4}},
		{"status clip 9", Intent{Kind: KindGetStatus, EntityType: store.EntityClip, EntityID: 9}},
		{"metric 2 views 1500", Intent{Kind: KindRecordMetric, PostID: 2, MetricType: "views", Value: 1500}},
		{"views 2 1500", Intent{Kind: KindRecordMetric, PostID: 2, MetricType: "views", Value: 1500}},
		{"likes 2 80", Intent{Kind: KindRecordMetric, PostID: 2, MetricType: "likes", Value: 80}},
		{"HELP", Intent{Kind: KindHelp}},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			got, err := Classify(tc.message)
			if err != nil {
				t.Fatalf("Classify(%q): %v", tc.message, err)
			}
			if got != tc.want {
				t.Fatalf("Classify(%q) = %+v, want %+v", tc.message, got, tc.want)
			}
		})
	}
}

func TestClassifyRejectsUnknown(t *testing.T) {
	for _, message := range []string{"", "make me famous", "schedule youtube", "status thing 1", "clips abc"} {
		if _, err := Classify(message); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Classify(%q) = %v, want ErrValidation", message, err)
		}
	}
}
