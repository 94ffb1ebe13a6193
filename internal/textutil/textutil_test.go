package textutil

import "testing"

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"my_morning_stream", "My Morning Stream"},
		{"big-reveal.final", "Big Reveal Final"},
		{"  ALREADY  SHOUTING  ", "Already Shouting"},
		{"", "Untitled"},
	}
	for _, tc := range cases {
		if got := CleanTitle(tc.in); got != tc.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short, 10) = %q", got)
	}
	if got := Truncate("a longer sentence", 10); got != "a longe..." {
		t.Errorf("Truncate = %q", got)
	}
}

func TestCaptionFrom(t *testing.T) {
	if got := CaptionFrom("First sentence. Second sentence.", 80); got != "First sentence." {
		t.Errorf("CaptionFrom = %q", got)
	}
	if got := CaptionFrom("   ", 80); got != "" {
		t.Errorf("CaptionFrom(blank) = %q", got)
	}
}
