package track

import "testing"

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    string
	}{
		{"zero", 0, "0:00"},
		{"under a minute", 42, "0:42"},
		{"minutes", 165, "2:45"},
		{"exact hour", 3600, "1:00:00"},
		{"over an hour", 3725, "1:02:05"},
		{"negative clamps to zero", -5, "0:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSeconds(tt.seconds); got != tt.want {
				t.Errorf("FormatSeconds(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	withArtist := &Track{Title: "Song", Artist: "Band"}
	if got := withArtist.DisplayName(); got != "Band - Song" {
		t.Errorf("DisplayName() = %q, want %q", got, "Band - Song")
	}

	noArtist := &Track{Title: "Song"}
	if got := noArtist.DisplayName(); got != "Song" {
		t.Errorf("DisplayName() = %q, want %q", got, "Song")
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		in   string
		want LoopMode
	}{
		{"none", LoopNone},
		{"track", LoopTrack},
		{"queue", LoopQueue},
		{"garbage", LoopNone},
		{"", LoopNone},
	}
	for _, tt := range tests {
		if got := ParseLoopMode(tt.in); got != tt.want {
			t.Errorf("ParseLoopMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoopModeStringRoundTrip(t *testing.T) {
	for _, mode := range []LoopMode{LoopNone, LoopTrack, LoopQueue} {
		if got := ParseLoopMode(mode.String()); got != mode {
			t.Errorf("round trip of %v gave %v", mode, got)
		}
	}
}

func TestNewQueueItem(t *testing.T) {
	tr := &Track{Title: "Song", URL: "https://example.com/1"}
	item := NewQueueItem(tr, "user1", "Alice")
	if item.Track != tr {
		t.Error("item does not reference the original track")
	}
	if item.RequesterID != "user1" || item.RequesterName != "Alice" {
		t.Errorf("requester = %s/%s, want user1/Alice", item.RequesterID, item.RequesterName)
	}
	if item.AddedAt.IsZero() {
		t.Error("AddedAt not stamped")
	}
}
