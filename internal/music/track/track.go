// Package track defines the value types shared by the music queue and player.
package track

import (
	"fmt"
	"time"
)

// Source tags where a track came from.
type Source string

const (
	SourceYouTube Source = "youtube"
	SourceSpotify Source = "spotify"
	SourceSearch  Source = "search"
)

// Track describes a playable item. Immutable once resolved, except for the
// StreamURL cache which is filled in lazily by the resolver.
type Track struct {
	Title     string
	URL       string
	Duration  int // seconds
	Thumbnail string
	Artist    string
	Album     string
	Source    Source

	// StreamURL is the direct playback URL, resolved once and cached.
	StreamURL string
}

// DisplayName returns "Artist - Title" when the artist is known.
func (t *Track) DisplayName() string {
	if t.Artist != "" {
		return t.Artist + " - " + t.Title
	}
	return t.Title
}

// FormatDuration renders the duration as M:SS, or H:MM:SS past the hour.
func (t *Track) FormatDuration() string {
	return FormatSeconds(t.Duration)
}

// FormatSeconds renders a second count as M:SS, or H:MM:SS past the hour.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// QueueItem wraps a Track with its queue placement.
type QueueItem struct {
	Track         *Track
	RequesterID   string
	RequesterName string
	AddedAt       time.Time

	// Position is 1-based display order. Position 1 is reserved for the
	// currently playing item when one exists; it is recomputed on every
	// queue mutation.
	Position int
}

// NewQueueItem stamps a track with its requester.
func NewQueueItem(t *Track, requesterID, requesterName string) *QueueItem {
	return &QueueItem{
		Track:         t,
		RequesterID:   requesterID,
		RequesterName: requesterName,
		AddedAt:       time.Now(),
	}
}

// LoopMode controls what happens when a track finishes.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "none"
	}
}

// ParseLoopMode converts the persisted form back to a LoopMode. Unknown
// values fall back to LoopNone.
func ParseLoopMode(s string) LoopMode {
	switch s {
	case "track":
		return LoopTrack
	case "queue":
		return LoopQueue
	default:
		return LoopNone
	}
}
