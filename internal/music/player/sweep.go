package player

import (
	"context"
	"time"
)

// CheckInactivity disconnects the guild's session when its voice channel has
// no human occupants, or when nothing has been playing for longer than the
// inactivity timeout. Reports whether a disconnect happened.
func (p *Player) CheckInactivity(guildID string) bool {
	disconnected := false
	p.do(guildID, func(s *session) {
		if s.voice == nil || !s.voice.IsConnected() {
			return
		}

		humans := 0
		for _, o := range s.voice.ChannelOccupants() {
			if !o.Bot {
				humans++
			}
		}
		if humans == 0 {
			p.log.Infof("[Player] Voice channel empty, disconnecting from guild %s", guildID)
			p.teardown(s)
			disconnected = true
			return
		}

		if !s.state.IsPlaying && time.Since(s.state.LastActivity) > p.cfg.InactivityTimeout {
			p.log.Infof("[Player] Inactive for %s, disconnecting from guild %s",
				time.Since(s.state.LastActivity).Round(time.Second), guildID)
			p.teardown(s)
			disconnected = true
		}
	})
	return disconnected
}

// RunInactivitySweep runs CheckInactivity across all known sessions on the
// configured interval until ctx is cancelled. Meant to run as a goroutine
// from main.
func (p *Player) RunInactivitySweep(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			for _, guildID := range p.knownGuilds() {
				p.CheckInactivity(guildID)
			}
		}
	}
}
