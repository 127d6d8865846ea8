package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"sombra/internal/music/player"
)

// ErrNoAudioBackend is returned by Play when no backend was configured.
var ErrNoAudioBackend = errors.New("no audio backend configured")

// AudioStream is one in-flight audio pipeline.
type AudioStream interface {
	Pause() error
	Resume() error
	Stop() error
	SetVolume(volume int) error
}

// AudioBackend turns a stream URL into Opus frames on a voice connection.
// Start must report completion exactly once via onFinished, including after
// Stop. Decoding and transcoding live entirely behind this boundary.
type AudioBackend interface {
	Start(vc *discordgo.VoiceConnection, streamURL string, volume int, onFinished func(error)) (AudioStream, error)
}

// Dialer establishes voice sessions over a discordgo gateway connection.
type Dialer struct {
	dg      *discordgo.Session
	backend AudioBackend
	log     *zap.SugaredLogger
}

func NewDialer(dg *discordgo.Session, backend AudioBackend, log *zap.SugaredLogger) *Dialer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dialer{dg: dg, backend: backend, log: log}
}

// Connect joins a voice channel, honoring ctx. ChannelVoiceJoin has no
// cancellation of its own, so a join that lands after the deadline is
// disconnected immediately.
func (d *Dialer) Connect(ctx context.Context, guildID, channelID string) (player.VoiceSession, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vc, err := d.dg.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- result{vc: vc, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil && r.vc != nil {
				d.log.Warnf("[Voice] Late join on guild %s discarded", guildID)
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("voice join failed: %w", r.err)
		}
		return &voiceSession{
			dg:        d.dg,
			guildID:   guildID,
			vc:        r.vc,
			backend:   d.backend,
			log:       d.log,
			connected: true,
		}, nil
	}
}

// voiceSession adapts one discordgo voice connection to the player's
// transport boundary.
type voiceSession struct {
	dg      *discordgo.Session
	guildID string
	backend AudioBackend
	log     *zap.SugaredLogger

	mu        sync.Mutex
	vc        *discordgo.VoiceConnection
	stream    AudioStream
	connected bool
}

func (v *voiceSession) Move(ctx context.Context, channelID string) error {
	v.mu.Lock()
	vc := v.vc
	v.mu.Unlock()
	if vc == nil {
		return errors.New("not connected")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- vc.ChangeChannel(channelID, false, true)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (v *voiceSession) Play(streamURL string, volume int, onFinished func(error)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return ErrNoAudioBackend
	}
	if v.vc == nil || !v.connected {
		return errors.New("not connected")
	}
	stream, err := v.backend.Start(v.vc, streamURL, volume, onFinished)
	if err != nil {
		return err
	}
	v.stream = stream
	return nil
}

func (v *voiceSession) Pause() error {
	v.mu.Lock()
	stream := v.stream
	v.mu.Unlock()
	if stream == nil {
		return errors.New("nothing playing")
	}
	return stream.Pause()
}

func (v *voiceSession) Resume() error {
	v.mu.Lock()
	stream := v.stream
	v.mu.Unlock()
	if stream == nil {
		return errors.New("nothing playing")
	}
	return stream.Resume()
}

func (v *voiceSession) Stop() error {
	v.mu.Lock()
	stream := v.stream
	v.stream = nil
	v.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Stop()
}

func (v *voiceSession) SetVolume(volume int) error {
	v.mu.Lock()
	stream := v.stream
	v.mu.Unlock()
	if stream == nil {
		return errors.New("nothing playing")
	}
	return stream.SetVolume(volume)
}

func (v *voiceSession) Disconnect() error {
	v.mu.Lock()
	stream := v.stream
	vc := v.vc
	v.stream = nil
	v.vc = nil
	v.connected = false
	v.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
	}
	if vc == nil {
		return nil
	}
	return vc.Disconnect()
}

func (v *voiceSession) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected && v.vc != nil
}

func (v *voiceSession) ChannelID() string {
	v.mu.Lock()
	vc := v.vc
	v.mu.Unlock()
	if vc == nil {
		return ""
	}
	vc.RLock()
	defer vc.RUnlock()
	return vc.ChannelID
}

// ChannelOccupants lists everyone in the session's channel, resolving the
// bot flag and display name through the member cache where possible.
func (v *voiceSession) ChannelOccupants() []player.Occupant {
	channelID := v.ChannelID()
	if channelID == "" {
		return nil
	}
	guild, err := v.dg.State.Guild(v.guildID)
	if err != nil {
		return nil
	}

	var occupants []player.Occupant
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		occ := player.Occupant{ID: vs.UserID}
		if member, err := v.dg.State.Member(v.guildID, vs.UserID); err == nil && member.User != nil {
			occ.Name = member.User.Username
			occ.Bot = member.User.Bot
		}
		occupants = append(occupants, occ)
	}
	return occupants
}
