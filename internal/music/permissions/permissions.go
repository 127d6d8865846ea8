// Package permissions evaluates the role hierarchy that gates shared-session
// actions: moving the bot, skipping other users' tracks, clearing the queue.
package permissions

import (
	"github.com/bwmarrin/discordgo"
)

// Level is an ordered permission rank.
type Level int

const (
	LevelUser Level = iota
	LevelModerator
	LevelAdmin
	LevelMainAdmin
)

func (l Level) String() string {
	switch l {
	case LevelModerator:
		return "moderator"
	case LevelAdmin:
		return "admin"
	case LevelMainAdmin:
		return "main admin"
	default:
		return "user"
	}
}

// Result is the outcome of a permission check. Denials carry a
// human-readable reason and never mutate anything.
type Result struct {
	Allowed bool
	Reason  string
	Level   Level
}

// MemberResolver looks up a guild member, for resolving the session owner's
// level live rather than from a cached snapshot.
type MemberResolver interface {
	Member(guildID, userID string) (*discordgo.Member, error)
}

// Checker evaluates permissions against a fixed role-to-level mapping.
type Checker struct {
	mainAdminID string
	roleLevels  map[string]Level
	members     MemberResolver
}

// New builds a checker. The first two role IDs map to the admin level, the
// third to moderator; empty IDs are skipped. members may be nil, in which
// case owner-level comparison is skipped in CanMoveSession.
func New(mainAdminID string, adminRoleIDs []string, members MemberResolver) *Checker {
	roleLevels := make(map[string]Level)
	for i, id := range adminRoleIDs {
		if id == "" {
			continue
		}
		if i < 2 {
			roleLevels[id] = LevelAdmin
		} else {
			roleLevels[id] = LevelModerator
		}
	}
	return &Checker{
		mainAdminID: mainAdminID,
		roleLevels:  roleLevels,
		members:     members,
	}
}

// Level derives a member's permission level: the main admin ID wins outright,
// otherwise the highest level among mapped roles the member holds.
func (c *Checker) Level(member *discordgo.Member) Level {
	if member == nil || member.User == nil {
		return LevelUser
	}
	if c.mainAdminID != "" && member.User.ID == c.mainAdminID {
		return LevelMainAdmin
	}
	max := LevelUser
	for _, roleID := range member.Roles {
		if level, ok := c.roleLevels[roleID]; ok && level > max {
			max = level
		}
	}
	return max
}

// CanUseMusicCommands always allows; it exists to report the caller's level.
func (c *Checker) CanUseMusicCommands(member *discordgo.Member) Result {
	return Result{Allowed: true, Level: c.Level(member)}
}

// MoveRequest describes an attempt to redirect the session to another channel.
type MoveRequest struct {
	Requester *discordgo.Member
	GuildID   string

	// CurrentChannelID is empty when no session exists.
	CurrentChannelID string
	TargetChannelID  string

	// ChannelOwnerID is empty when no owner was recorded.
	ChannelOwnerID string

	// NonBotOccupants is the number of humans in the current channel.
	NonBotOccupants int
}

// CanMoveSession decides whether the requester may move the session. The
// owner's level is resolved live so a promotion or demotion since the session
// started is honored.
func (c *Checker) CanMoveSession(req MoveRequest) Result {
	level := c.Level(req.Requester)

	if req.CurrentChannelID == "" {
		return Result{Allowed: true, Reason: "session is free", Level: level}
	}
	if req.CurrentChannelID == req.TargetChannelID {
		return Result{Allowed: true, Reason: "already in that channel", Level: level}
	}
	if level == LevelMainAdmin {
		return Result{Allowed: true, Reason: "main administrator", Level: level}
	}
	if req.ChannelOwnerID == "" {
		return Result{Allowed: true, Reason: "no session owner", Level: level}
	}
	if req.Requester != nil && req.Requester.User != nil && req.Requester.User.ID == req.ChannelOwnerID {
		return Result{Allowed: true, Reason: "session owner", Level: level}
	}
	if req.NonBotOccupants == 0 {
		return Result{Allowed: true, Reason: "channel is empty", Level: level}
	}

	if c.members != nil {
		owner, err := c.members.Member(req.GuildID, req.ChannelOwnerID)
		if err == nil && owner != nil && level > c.Level(owner) {
			return Result{Allowed: true, Reason: "higher permission level", Level: level}
		}
	}

	return Result{
		Allowed: false,
		Reason: "the session is in use in another channel; wait for it to finish " +
			"or ask someone with a higher permission level",
		Level: level,
	}
}

// CanSkip allows the track's own requester always, and moderators or above
// for any track.
func (c *Checker) CanSkip(member *discordgo.Member, trackRequesterID string) Result {
	level := c.Level(member)
	if member != nil && member.User != nil && member.User.ID == trackRequesterID {
		return Result{Allowed: true, Reason: "track requester", Level: level}
	}
	if level >= LevelModerator {
		return Result{Allowed: true, Reason: "moderator", Level: level}
	}
	return Result{Allowed: false, Reason: "you can only skip your own tracks", Level: level}
}

// CanStop allows anyone to stop playback. Intentional low-friction default.
func (c *Checker) CanStop(member *discordgo.Member) Result {
	return Result{Allowed: true, Level: c.Level(member)}
}

// CanClearQueue requires moderator or above.
func (c *Checker) CanClearQueue(member *discordgo.Member) Result {
	level := c.Level(member)
	if level >= LevelModerator {
		return Result{Allowed: true, Reason: "moderator", Level: level}
	}
	return Result{Allowed: false, Reason: "not enough permissions to clear the queue", Level: level}
}
