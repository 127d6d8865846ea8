// Package player orchestrates per-guild music playback: queueing, the voice
// connection lifecycle, loop modes, stream-URL preloading, bounded resolution
// retries and inactivity teardown.
//
// Every guild gets one session with a single command loop; all operations,
// including track-completion notifications arriving from the transport, are
// marshalled into that loop. Sessions are independent of each other.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sombra/internal/music/queue"
	"sombra/internal/music/track"
)

// Config carries the player policies.
type Config struct {
	MaxQueueSize      int
	DefaultVolume     int
	MaxRetries        int
	InactivityTimeout time.Duration
	ConnectTimeout    time.Duration
	SweepInterval     time.Duration
	ResolveTimeout    time.Duration
}

// DefaultConfig returns the stock policies.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:      100,
		DefaultVolume:     50,
		MaxRetries:        3,
		InactivityTimeout: 300 * time.Second,
		ConnectTimeout:    10 * time.Second,
		SweepInterval:     60 * time.Second,
		ResolveTimeout:    30 * time.Second,
	}
}

// session is one guild's playback context. All fields except guildID and
// cmds are owned by the session loop.
type session struct {
	guildID string
	cmds    chan func()

	state *GuildState
	queue *queue.TrackQueue
	voice VoiceSession

	// gen is bumped on every teardown; async results carrying an older
	// generation are stale and discarded.
	gen     uint64
	retries int

	// Single preload slot: overwritten on write, cleared on read.
	preloadTrackURL  string
	preloadStreamURL string
}

func (s *session) clearPreload() {
	s.preloadTrackURL = ""
	s.preloadStreamURL = ""
}

// Player is the per-guild session registry and playback state machine.
type Player struct {
	cfg      Config
	resolver TrackResolver
	dialer   VoiceDialer
	settings SettingsStore // optional
	log      *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*session

	events chan Event

	handlersMu   sync.RWMutex
	onTrackStart func(guildID string, item *track.QueueItem)
	onTrackEnd   func(guildID string, item *track.QueueItem)
	onQueueEmpty func(guildID string)
	onError      func(guildID, message string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Player. settings may be nil to skip persistence; log may be
// nil to disable logging.
func New(resolver TrackResolver, dialer VoiceDialer, settings SettingsStore, cfg Config, log *zap.SugaredLogger) *Player {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		cfg:      cfg,
		resolver: resolver,
		dialer:   dialer,
		settings: settings,
		log:      log,
		sessions: make(map[string]*session),
		events:   make(chan Event, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.wg.Add(1)
	go p.dispatchEvents()
	return p
}

// Close disconnects all sessions and stops the player's goroutines.
func (p *Player) Close() {
	for _, guildID := range p.knownGuilds() {
		p.Disconnect(guildID)
	}
	p.cancel()
	p.wg.Wait()
}

// SetOnTrackStart registers the track-start handler.
func (p *Player) SetOnTrackStart(fn func(guildID string, item *track.QueueItem)) {
	p.handlersMu.Lock()
	p.onTrackStart = fn
	p.handlersMu.Unlock()
}

// SetOnTrackEnd registers the track-end handler.
func (p *Player) SetOnTrackEnd(fn func(guildID string, item *track.QueueItem)) {
	p.handlersMu.Lock()
	p.onTrackEnd = fn
	p.handlersMu.Unlock()
}

// SetOnQueueEmpty registers the queue-empty handler.
func (p *Player) SetOnQueueEmpty(fn func(guildID string)) {
	p.handlersMu.Lock()
	p.onQueueEmpty = fn
	p.handlersMu.Unlock()
}

// SetOnError registers the error handler.
func (p *Player) SetOnError(fn func(guildID, message string)) {
	p.handlersMu.Lock()
	p.onError = fn
	p.handlersMu.Unlock()
}

// Connect joins a voice channel, moving if connected elsewhere. The first
// user to establish a session is recorded as its owner; a failed dial or
// move leaves the session untouched.
func (p *Player) Connect(guildID, channelID, requesterID string) (VoiceSession, error) {
	var vs VoiceSession
	var err error
	p.do(guildID, func(s *session) {
		if s.voice != nil && s.voice.IsConnected() {
			if s.voice.ChannelID() == channelID {
				s.state.Touch()
				vs = s.voice
				return
			}
			ctx, cancel := context.WithTimeout(p.ctx, p.cfg.ConnectTimeout)
			defer cancel()
			if mErr := s.voice.Move(ctx, channelID); mErr != nil {
				err = fmt.Errorf("failed to move to voice channel: %w", mErr)
				return
			}
			s.state.Touch()
			p.log.Infof("[Player] Moved to channel %s on guild %s", channelID, guildID)
			vs = s.voice
			return
		}

		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.ConnectTimeout)
		defer cancel()
		conn, dErr := p.dialer.Connect(ctx, guildID, channelID)
		if dErr != nil {
			err = fmt.Errorf("failed to connect to voice channel: %w", dErr)
			return
		}
		s.voice = conn
		if s.state.ChannelOwnerID == "" {
			s.state.ChannelOwnerID = requesterID
		}
		s.state.Touch()
		p.log.Infof("[Player] Connected to channel %s on guild %s", channelID, guildID)
		vs = conn
	})
	return vs, err
}

// Disconnect stops playback, tears down the voice transport and resets the
// guild to a fresh empty state. Idempotent.
func (p *Player) Disconnect(guildID string) {
	p.do(guildID, func(s *session) {
		p.teardown(s)
	})
}

// Stop is equivalent to Disconnect.
func (p *Player) Stop(guildID string) {
	p.Disconnect(guildID)
}

// Play enqueues a track. If nothing is playing the track starts immediately;
// otherwise the queue head is preloaded in the background.
func (p *Player) Play(guildID string, t *track.Track, requesterID, requesterName string) (*track.QueueItem, error) {
	var item *track.QueueItem
	var err error
	p.do(guildID, func(s *session) {
		item, err = s.queue.Add(t, requesterID, requesterName)
		if err != nil {
			p.log.Warnf("[Player] Queue full on guild %s, rejected %q", guildID, t.DisplayName())
			return
		}
		if !s.state.IsPlaying {
			p.playNext(s)
		} else {
			p.preloadNext(s)
		}
		s.state.Touch()
	})
	return item, err
}

// PlayMultiple bulk-enqueues tracks, stopping at capacity. The returned
// slice holds whatever was accepted; playback starts once if nothing was
// playing.
func (p *Player) PlayMultiple(guildID string, tracks []*track.Track, requesterID, requesterName string) []*track.QueueItem {
	var items []*track.QueueItem
	p.do(guildID, func(s *session) {
		items = s.queue.AddMultiple(tracks, requesterID, requesterName)
		if !s.state.IsPlaying && len(items) > 0 {
			p.playNext(s)
		}
		s.state.Touch()
	})
	return items
}

// Skip stops the in-flight track; the completion notification then advances
// the queue. The returned item is what the queue reports as next at call
// time, a best-effort hint since loop mode can change what actually plays.
func (p *Player) Skip(guildID string) *track.QueueItem {
	var next *track.QueueItem
	p.do(guildID, func(s *session) {
		if s.voice == nil || !s.voice.IsConnected() {
			return
		}
		if s.state.IsPlaying {
			_ = s.voice.Stop()
		}
		s.state.Touch()
		next = s.queue.PeekNext()
	})
	return next
}

// Pause pauses playback. Returns false unless something is actively playing.
func (p *Player) Pause(guildID string) bool {
	ok := false
	p.do(guildID, func(s *session) {
		if s.voice == nil || !s.state.IsPlaying || s.state.IsPaused {
			return
		}
		if err := s.voice.Pause(); err != nil {
			p.log.Warnf("[Player] Pause failed on guild %s: %v", guildID, err)
			return
		}
		s.state.IsPaused = true
		s.state.Touch()
		ok = true
	})
	return ok
}

// Resume resumes paused playback. Returns false unless paused.
func (p *Player) Resume(guildID string) bool {
	ok := false
	p.do(guildID, func(s *session) {
		if s.voice == nil || !s.state.IsPaused {
			return
		}
		if err := s.voice.Resume(); err != nil {
			p.log.Warnf("[Player] Resume failed on guild %s: %v", guildID, err)
			return
		}
		s.state.IsPaused = false
		s.state.Touch()
		ok = true
	})
	return ok
}

// SetVolume clamps volume into 0-100, persists it, and applies it to the
// live audio transform if one exists. Returns true when applied live.
func (p *Player) SetVolume(guildID string, volume int) bool {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	applied := false
	p.do(guildID, func(s *session) {
		s.state.Volume = volume
		if s.voice != nil && s.voice.IsConnected() {
			if err := s.voice.SetVolume(volume); err == nil {
				applied = true
			}
		}
		p.saveSettings(s)
	})
	return applied
}

// SetLoopMode updates the loop mode; it takes effect at the next
// track-completion decision point.
func (p *Player) SetLoopMode(guildID string, mode track.LoopMode) {
	p.do(guildID, func(s *session) {
		s.state.LoopMode = mode
		p.saveSettings(s)
	})
	p.log.Infof("[Player] Loop mode set to %s for guild %s", mode, guildID)
}

// LoopMode returns the guild's loop mode.
func (p *Player) LoopMode(guildID string) track.LoopMode {
	var mode track.LoopMode
	p.do(guildID, func(s *session) {
		mode = s.state.LoopMode
	})
	return mode
}

// ClearQueue removes all not-yet-played items, keeping the current track.
// Returns the number of items removed.
func (p *Player) ClearQueue(guildID string) int {
	n := 0
	p.do(guildID, func(s *session) {
		n = s.queue.ClearQueued()
	})
	p.log.Infof("[Player] Queue cleared for guild %s, %d track(s) removed", guildID, n)
	return n
}

// Shuffle randomizes the queued order, leaving the current track alone.
func (p *Player) Shuffle(guildID string) {
	p.do(guildID, func(s *session) {
		s.queue.Shuffle()
	})
}

// RemoveTrack removes the item at a 1-based displayed position. Returns nil
// when out of range.
func (p *Player) RemoveTrack(guildID string, position int) *track.QueueItem {
	var removed *track.QueueItem
	p.do(guildID, func(s *session) {
		removed = s.queue.RemoveAt(position)
	})
	return removed
}

// IsConnected reports whether the guild has a live voice session.
func (p *Player) IsConnected(guildID string) bool {
	connected := false
	p.do(guildID, func(s *session) {
		connected = s.voice != nil && s.voice.IsConnected()
	})
	return connected
}

// IsPlaying reports whether audio is actively playing (not paused).
func (p *Player) IsPlaying(guildID string) bool {
	playing := false
	p.do(guildID, func(s *session) {
		playing = s.state.IsPlaying && !s.state.IsPaused
	})
	return playing
}

// NowPlaying returns the current item, or nil.
func (p *Player) NowPlaying(guildID string) *track.QueueItem {
	var cur *track.QueueItem
	p.do(guildID, func(s *session) {
		cur = s.queue.Current()
	})
	return cur
}

// StateSnapshot returns a copy of the guild's playback state.
func (p *Player) StateSnapshot(guildID string) GuildState {
	var snap GuildState
	p.do(guildID, func(s *session) {
		snap = *s.state
	})
	return snap
}

// QueuePage returns one page of the guild's queue plus the clamped page
// number and total page count.
func (p *Player) QueuePage(guildID string, page, perPage int) ([]*track.QueueItem, int, int) {
	var items []*track.QueueItem
	var actualPage, totalPages int
	p.do(guildID, func(s *session) {
		pageItems, ap, tp := s.queue.GetPage(page, perPage)
		items = make([]*track.QueueItem, len(pageItems))
		copy(items, pageItems)
		actualPage, totalPages = ap, tp
	})
	return items, actualPage, totalPages
}

// QueueSize reports the number of queued items, excluding current.
func (p *Player) QueueSize(guildID string) int {
	n := 0
	p.do(guildID, func(s *session) {
		n = s.queue.Size()
	})
	return n
}

// TotalDuration reports the queued duration plus the current track, in
// seconds.
func (p *Player) TotalDuration(guildID string) int {
	total := 0
	p.do(guildID, func(s *session) {
		total = s.queue.TotalDuration()
	})
	return total
}

// History returns the guild's recently finished items, oldest first.
func (p *Player) History(guildID string) []*track.QueueItem {
	var items []*track.QueueItem
	p.do(guildID, func(s *session) {
		items = s.queue.History()
	})
	return items
}

// getSession lazily creates the guild's session and starts its loop.
func (p *Player) getSession(guildID string) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[guildID]; ok {
		return s
	}
	s := &session{
		guildID: guildID,
		cmds:    make(chan func(), 64),
		state:   p.freshState(guildID),
		queue:   queue.New(p.cfg.MaxQueueSize),
	}
	p.sessions[guildID] = s
	p.wg.Add(1)
	go p.runSession(s)
	return s
}

func (p *Player) runSession(s *session) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-s.cmds:
			fn()
		}
	}
}

// do runs fn inside the session loop and waits for it to finish.
func (p *Player) do(guildID string, fn func(*session)) {
	s := p.getSession(guildID)
	done := make(chan struct{})
	select {
	case s.cmds <- func() { defer close(done); fn(s) }:
	case <-p.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-p.ctx.Done():
	}
}

// post runs fn inside the session loop without waiting. Used by goroutines
// delivering async results back into the serialized flow.
func (p *Player) post(s *session, fn func(*session)) {
	select {
	case s.cmds <- func() { fn(s) }:
	case <-p.ctx.Done():
	}
}

func (p *Player) knownGuilds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	guilds := make([]string, 0, len(p.sessions))
	for guildID := range p.sessions {
		guilds = append(guilds, guildID)
	}
	return guilds
}

func (p *Player) freshState(guildID string) *GuildState {
	volume := p.cfg.DefaultVolume
	loop := track.LoopNone
	if p.settings != nil {
		if v, lm, ok := p.settings.MusicSettings(guildID); ok {
			if v >= 0 && v <= 100 {
				volume = v
			}
			loop = track.ParseLoopMode(lm)
		}
	}
	return newGuildState(guildID, volume, loop)
}

func (p *Player) saveSettings(s *session) {
	if p.settings == nil {
		return
	}
	if err := p.settings.SaveMusicSettings(s.guildID, s.state.Volume, s.state.LoopMode.String()); err != nil {
		p.log.Warnf("[Player] Failed to save settings for guild %s: %v", s.guildID, err)
	}
}

// teardown resets the session to a fresh empty state. Loop-owned.
func (p *Player) teardown(s *session) {
	if s.voice != nil {
		if s.state.IsPlaying {
			_ = s.voice.Stop()
		}
		_ = s.voice.Disconnect()
		s.voice = nil
		p.log.Infof("[Player] Disconnected from guild %s", s.guildID)
	}
	s.gen++
	s.queue = queue.New(p.cfg.MaxQueueSize)
	s.state = p.freshState(s.guildID)
	s.clearPreload()
	s.retries = 0
}

// playNext pops the queue head and starts it, preferring the preload slot.
// When the queue is empty the session goes idle and queue-empty fires.
// Loop-owned.
func (p *Player) playNext(s *session) {
	if s.voice == nil || !s.voice.IsConnected() {
		s.state.IsPlaying = false
		s.state.IsPaused = false
		return
	}

	next := s.queue.GetNext()
	if next == nil {
		s.state.IsPlaying = false
		s.state.IsPaused = false
		s.state.CurrentTrack = nil
		s.queue.SetCurrent(nil)
		p.emit(Event{Type: EventQueueEmpty, GuildID: s.guildID})
		return
	}

	s.queue.SetCurrent(next)
	s.state.CurrentTrack = next

	// Busy from here on, even while the stream URL resolves; a Play landing
	// mid-resolution must not start a second pipeline.
	s.state.IsPlaying = true
	s.state.IsPaused = false

	if s.preloadStreamURL != "" && s.preloadTrackURL == next.Track.URL {
		streamURL := s.preloadStreamURL
		s.clearPreload()
		p.startPlayback(s, next, streamURL)
		return
	}
	s.clearPreload()
	p.resolveAndStart(s, next, true)
}

// resolveAndStart resolves the item's stream URL off-loop and posts the
// result back. With drain set, a failure consumes one retry and advances to
// the next track; without it (track-loop replays) a failure halts.
func (p *Player) resolveAndStart(s *session, item *track.QueueItem, drain bool) {
	gen := s.gen
	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.ResolveTimeout)
		defer cancel()
		streamURL, err := p.resolver.GetStreamURL(ctx, item.Track)
		p.post(s, func(s *session) {
			if gen != s.gen {
				return // session torn down mid-resolution
			}
			if err != nil || streamURL == "" {
				p.log.Errorf("[Player] Failed to resolve stream URL for %q on guild %s: %v",
					item.Track.DisplayName(), s.guildID, err)
				p.handleResolveFailure(s, drain)
				return
			}
			s.retries = 0
			p.startPlayback(s, item, streamURL)
		})
	}()
}

func (p *Player) handleResolveFailure(s *session, drain bool) {
	if drain && s.retries < p.cfg.MaxRetries {
		s.retries++
		p.playNext(s)
		return
	}
	s.retries = 0
	s.state.IsPlaying = false
	s.state.IsPaused = false
	p.emit(Event{Type: EventError, GuildID: s.guildID, Message: "failed to play track"})
}

// startPlayback hands the resolved stream to the transport and arms the
// completion callback. Loop-owned.
func (p *Player) startPlayback(s *session, item *track.QueueItem, streamURL string) {
	item.Track.StreamURL = streamURL

	if s.voice == nil || !s.voice.IsConnected() {
		s.state.IsPlaying = false
		s.state.IsPaused = false
		return
	}

	gen := s.gen
	err := s.voice.Play(streamURL, s.state.Volume, func(playErr error) {
		p.post(s, func(s *session) {
			p.handleTrackFinished(s, gen, playErr)
		})
	})
	if err != nil {
		p.log.Errorf("[Player] Failed to start playback for %q on guild %s: %v",
			item.Track.DisplayName(), s.guildID, err)
		s.state.IsPlaying = false
		s.state.IsPaused = false
		p.emit(Event{Type: EventError, GuildID: s.guildID, Message: "failed to start playback"})
		return
	}

	s.state.IsPlaying = true
	s.state.IsPaused = false
	s.state.Touch()
	p.log.Infof("[Player] Now playing %q on guild %s", item.Track.DisplayName(), s.guildID)
	p.emit(Event{Type: EventTrackStart, GuildID: s.guildID, Item: item})

	p.preloadNext(s)
}

// handleTrackFinished is the completion decision point: replay on track
// loop, requeue on queue loop, otherwise advance. Loop-owned.
func (p *Player) handleTrackFinished(s *session, gen uint64, playErr error) {
	if gen != s.gen {
		return // completion from a torn-down session
	}
	if playErr != nil {
		p.log.Warnf("[Player] Playback finished with error on guild %s: %v", s.guildID, playErr)
	}

	cur := s.queue.Current()
	if cur != nil {
		p.emit(Event{Type: EventTrackEnd, GuildID: s.guildID, Item: cur})
	}

	if s.state.LoopMode == track.LoopTrack && cur != nil {
		p.resolveAndStart(s, cur, false)
		return
	}
	if s.state.LoopMode == track.LoopQueue && cur != nil {
		if _, err := s.queue.Requeue(cur); err != nil {
			p.log.Warnf("[Player] Queue full on guild %s, loop entry dropped", s.guildID)
		}
	}

	p.playNext(s)
}

// preloadNext speculatively resolves the queue head's stream URL so the next
// advance can skip resolution latency. Failures are silent; the playback
// path re-resolves on demand. Loop-owned.
func (p *Player) preloadNext(s *session) {
	next := s.queue.PeekNext()
	if next == nil {
		s.clearPreload()
		return
	}
	gen := s.gen
	trackURL := next.Track.URL
	t := next.Track
	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.ResolveTimeout)
		defer cancel()
		streamURL, err := p.resolver.GetStreamURL(ctx, t)
		if err != nil || streamURL == "" {
			return
		}
		p.post(s, func(s *session) {
			if gen != s.gen {
				return // preload finished after disconnect
			}
			s.preloadTrackURL = trackURL
			s.preloadStreamURL = streamURL
		})
	}()
}

func (p *Player) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Warnf("[Player] Event dropped (buffer full): %s guild=%s", ev.Type, ev.GuildID)
	}
}

func (p *Player) dispatchEvents() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.events:
			p.handlersMu.RLock()
			onStart, onEnd := p.onTrackStart, p.onTrackEnd
			onEmpty, onErr := p.onQueueEmpty, p.onError
			p.handlersMu.RUnlock()

			switch ev.Type {
			case EventTrackStart:
				if onStart != nil {
					onStart(ev.GuildID, ev.Item)
				}
			case EventTrackEnd:
				if onEnd != nil {
					onEnd(ev.GuildID, ev.Item)
				}
			case EventQueueEmpty:
				if onEmpty != nil {
					onEmpty(ev.GuildID)
				}
			case EventError:
				if onErr != nil {
					onErr(ev.GuildID, ev.Message)
				}
			}
		}
	}
}
