package player

import (
	"context"

	"sombra/internal/music/track"
)

// TrackResolver is the extraction boundary. Implementations resolve user
// input into tracks and tracks into direct stream URLs; the player never
// talks to a provider directly.
type TrackResolver interface {
	ResolveTrack(ctx context.Context, urlOrQuery string) (*track.Track, error)
	ResolvePlaylist(ctx context.Context, url string, maxTracks int) ([]*track.Track, error)
	Search(ctx context.Context, query string, maxResults int) ([]*track.Track, error)

	// GetStreamURL resolves the direct playback URL for a track. Idempotent;
	// implementations cache the result on the track.
	GetStreamURL(ctx context.Context, t *track.Track) (string, error)
}

// Occupant is a member of a voice channel as the transport sees it.
type Occupant struct {
	ID   string
	Name string
	Bot  bool
}

// VoiceSession is the transport boundary: one live voice connection.
//
// Play starts audio for a stream URL and reports completion exactly once via
// onFinished, from an arbitrary goroutine. Stop must also trigger onFinished
// for the in-flight stream.
type VoiceSession interface {
	Move(ctx context.Context, channelID string) error
	Play(streamURL string, volume int, onFinished func(error)) error
	Pause() error
	Resume() error
	Stop() error
	SetVolume(volume int) error
	Disconnect() error
	IsConnected() bool
	ChannelID() string
	ChannelOccupants() []Occupant
}

// VoiceDialer establishes voice sessions. Connect must honor ctx deadlines.
type VoiceDialer interface {
	Connect(ctx context.Context, guildID, channelID string) (VoiceSession, error)
}

// SettingsStore persists per-guild player settings across restarts. Queue
// contents are never persisted.
type SettingsStore interface {
	MusicSettings(guildID string) (volume int, loopMode string, ok bool)
	SaveMusicSettings(guildID string, volume int, loopMode string) error
}

// EventType tags an outbound player event.
type EventType int

const (
	EventTrackStart EventType = iota
	EventTrackEnd
	EventQueueEmpty
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventTrackStart:
		return "track_start"
	case EventTrackEnd:
		return "track_end"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "error"
	}
}

// Event is an outbound notification. Events for one guild are delivered in
// the order the session produced them, each at most once.
type Event struct {
	Type    EventType
	GuildID string
	Item    *track.QueueItem // set for track start/end
	Message string           // set for errors
}
