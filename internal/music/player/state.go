package player

import (
	"time"

	"sombra/internal/music/track"
)

// GuildState is one guild's playback state. Owned by the session loop;
// Snapshot copies it out for external readers.
type GuildState struct {
	GuildID      string
	CurrentTrack *track.QueueItem
	IsPlaying    bool
	IsPaused     bool // implies IsPlaying
	Volume       int  // 0-100
	LoopMode     track.LoopMode
	LastActivity time.Time

	// ChannelOwnerID is the user who first established the session's voice
	// connection; empty until then. First connect wins.
	ChannelOwnerID string
}

// Touch refreshes the inactivity clock. Called on every state-affecting
// operation so the reaper measures true idle time.
func (s *GuildState) Touch() {
	s.LastActivity = time.Now()
}

func newGuildState(guildID string, volume int, loopMode track.LoopMode) *GuildState {
	return &GuildState{
		GuildID:      guildID,
		Volume:       volume,
		LoopMode:     loopMode,
		LastActivity: time.Now(),
	}
}
