package chaperone

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Moderation actions recorded in the audit log.
const (
	ModerationActionDelete  = "delete"
	ModerationActionTimeout = "timeout"
	ModerationActionUnmute  = "unmute"
	ModerationActionKick    = "kick"
	ModerationActionBan     = "ban"
	ModerationActionUnban   = "unban"
	ModerationActionWarn    = "warn"
	ModerationActionPurge   = "purge"

	ModerationActionRoleAdd    = "role_add"
	ModerationActionRoleRemove = "role_remove"
	ModerationActionIgnore     = "ignore"
	ModerationActionUnignore   = "unignore"
)

const (
	embedColorModeration = 0xED4245 // discord red
	embedColorNotice     = 0x5865F2 // discord blurple
	embedColorOK         = 0x57F287 // discord green
)

// ModerationEvent is one audit log row: an action the bot took against
// a user, either automatically or on behalf of a moderator.
type ModerationEvent struct {
	ModelUintID

	// UserID the action was taken against
	UserID string `json:"user_id" gorm:"type:string;index"`

	// Username at the time of the action, for log readability
	Username string `json:"username" gorm:"type:string"`

	// GuildID the action happened in
	GuildID string `json:"guild_id" gorm:"type:string"`

	// ChannelID the triggering message was in, if any
	ChannelID string `json:"channel_id" gorm:"type:string"`

	// Action is one of the ModerationAction constants
	Action string `json:"action" gorm:"type:string;index"`

	// Reason recorded with the action
	Reason string `json:"reason" gorm:"type:string"`

	// ActorID is the moderator who requested the action. Empty for
	// automatic actions.
	ActorID string `json:"actor_id" gorm:"type:string"`

	ModelUnixTime
}

// recordModeration writes an audit row. Failures are logged and
// swallowed; the audit log never blocks a moderation action.
func (c *Chaperone) recordModeration(ev *ModerationEvent) {
	if c.writeDB == nil {
		return
	}
	if _, err := c.writeDB.Create(ev); err != nil {
		c.logger.Error(
			"error recording moderation event",
			"action", ev.Action,
			"user_id", ev.UserID,
			tint.Err(err),
		)
	}
}

// handleMessageCreate is the inbound message pipeline. Order matters:
// presence transitions commit before any moderation side effects,
// moderation is skipped entirely for admins, and spam evaluation runs
// on every event whether or not the filter removed it. Every
// Discord-facing step is best-effort; a failed delete or notice never
// unwinds earlier state.
func (c *Chaperone) handleMessageCreate(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		// DMs: no presence scope, no moderation
		return
	}

	user, _, err := c.users.GetOrCreate(*m.Author)
	if err == nil && user.Ignored {
		return
	}

	now := time.Now()
	c.messageCount.Add(1)

	// any activity from an away user clears their away status
	if notice, returned := c.presence.OnActivity(
		Activity{
			UserID:   m.Author.ID,
			Username: m.Author.Username,
			ScopeID:  m.GuildID,
			At:       now,
		},
	); returned {
		c.effects.SendNotice(
			m.ChannelID,
			returnNoticeEmbed(m.Author, notice),
			c.config.Moderation.ReturnNoticeTTL,
		)
	}

	// AFK notices for anyone mentioned who is currently away
	mentioned := make([]string, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentioned = append(mentioned, u.ID)
	}
	for _, notice := range c.presence.OnMention(mentioned, now) {
		c.effects.SendNotice(
			m.ChannelID,
			afkNoticeEmbed(notice),
			c.config.Moderation.MentionNoticeTTL,
		)
	}

	if c.isAdminMember(m.Member) {
		return
	}

	if verdict := c.filter.Check(m.Content); verdict.Matched {
		c.moderateFilteredMessage(m, verdict)
	}

	// the rate check is independent of content filtering: a deleted
	// message still counts toward the sender's window, and both can
	// fire on the same event
	if verdict := c.spam.Evaluate(m.Author.ID, now); verdict.Suspend {
		c.moderateSpammer(m, verdict)
	}
}

// moderateFilteredMessage deletes a hard-blocked message, warns the
// channel, and DMs the author the reasons.
func (c *Chaperone) moderateFilteredMessage(
	m *discordgo.MessageCreate,
	verdict FilterVerdict,
) {
	c.filteredCount.Add(1)
	reason := filterReasonSummary(verdict.Reasons)

	c.effects.DeleteContent(m.ChannelID, m.ID)
	c.effects.SendText(
		m.ChannelID,
		fmt.Sprintf(
			"%s, your message was removed: %s",
			m.Author.Mention(), reason,
		),
		c.config.Moderation.WarningNoticeTTL,
	)
	c.effects.SendDirect(
		m.Author.ID, &discordgo.MessageEmbed{
			Title:       "Message Removed",
			Description: "Your message was removed for violating server rules.",
			Color:       embedColorModeration,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Reason", Value: reason},
			},
		},
	)
	c.recordModeration(
		&ModerationEvent{
			UserID:    m.Author.ID,
			Username:  m.Author.Username,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			Action:    ModerationActionDelete,
			Reason:    reason,
		},
	)
	c.logger.Info(
		"removed filtered message",
		"user_id", m.Author.ID,
		"channel_id", m.ChannelID,
		"reason", reason,
	)
}

// moderateSpammer applies a timeout after a spam trigger and announces
// it in the channel.
func (c *Chaperone) moderateSpammer(
	m *discordgo.MessageCreate,
	verdict SpamVerdict,
) {
	c.suspendedCount.Add(1)
	reason := fmt.Sprintf(
		"Sending messages too quickly (%d in the last %s)",
		verdict.Count,
		c.spam.window,
	)
	c.effects.SuspendUser(m.GuildID, m.Author.ID, verdict.SuspendFor, reason)
	c.effects.SendNotice(
		m.ChannelID, &discordgo.MessageEmbed{
			Title: "Slow down!",
			Description: fmt.Sprintf(
				"%s has been timed out for %s for spamming.",
				m.Author.Mention(), verdict.SuspendFor,
			),
			Color: embedColorModeration,
		}, 0,
	)
	c.recordModeration(
		&ModerationEvent{
			UserID:    m.Author.ID,
			Username:  m.Author.Username,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			Action:    ModerationActionTimeout,
			Reason:    reason,
		},
	)
}

// isAdminMember reports whether the member holds one of the configured
// admin roles.
func (c *Chaperone) isAdminMember(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	for _, roleID := range member.Roles {
		for _, adminID := range c.config.Discord.AdminRoleIDs {
			if roleID == adminID {
				return true
			}
		}
	}
	return false
}

func filterReasonSummary(reasons []FilterReason) string {
	if len(reasons) == 0 {
		return string(ReasonFilteredWord)
	}
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, "; ")
}

func returnNoticeEmbed(author *discordgo.User, notice ReturnNotice) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Welcome back!",
		Description: fmt.Sprintf(
			"%s is no longer AFK. You were away for %s.",
			author.Mention(),
			shortDuration(notice.AwayFor),
		),
		Color: embedColorOK,
	}
}

func afkNoticeEmbed(notice AfkNotice) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "User is AFK",
		Description: fmt.Sprintf(
			"<@%s> is AFK: %s (since %s ago)",
			notice.UserID,
			notice.Reason,
			shortDuration(time.Since(notice.Since)),
		),
		Color: embedColorNotice,
	}
}

// shortDuration renders a duration the way people read it in chat:
// seconds under a minute, minutes under an hour, then hours+minutes.
func shortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%d hours %d minutes", h, m)
	}
}
