// Package discord binds the player's transport and lookup boundaries to a
// live discordgo session.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// MemberSource resolves guild members, preferring the gateway state cache
// and falling back to the REST API on a miss.
type MemberSource struct {
	dg *discordgo.Session
}

func NewMemberSource(dg *discordgo.Session) *MemberSource {
	return &MemberSource{dg: dg}
}

func (m *MemberSource) Member(guildID, userID string) (*discordgo.Member, error) {
	if member, err := m.dg.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return m.dg.GuildMember(guildID, userID)
}

// FindUserVoiceChannel returns the voice channel a user currently occupies.
func FindUserVoiceChannel(dg *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user not in any voice channel")
}
