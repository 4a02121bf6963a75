package chaperone

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// EffectResult is the uniform outcome of a requested platform side
// effect (rename, notify, suspend, delete). Effect failures are soft:
// they're logged at the point of the request and never invalidate the
// state transition that preceded them.
type EffectResult struct {
	// Op names the effect, for logging
	Op string

	// Err is the underlying failure, if any
	Err error
}

// Ok reports whether the effect succeeded.
func (r EffectResult) Ok() bool {
	return r.Err == nil
}

// Forbidden reports whether the effect failed due to missing
// permissions (HTTP 403 from Discord).
func (r EffectResult) Forbidden() bool {
	var restErr *discordgo.RESTError
	if errors.As(r.Err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusForbidden
	}
	return false
}

// EffectRunner issues best-effort side effects against the Discord API
// on behalf of the presence tracker and spam detector. Every method
// returns an EffectResult and logs failures itself, so callers can
// fire-and-forget.
type EffectRunner struct {
	session DiscordSessionHandler
	logger  *slog.Logger
}

// NewEffectRunner wraps the given session.
func NewEffectRunner(session DiscordSessionHandler, logger *slog.Logger) *EffectRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &EffectRunner{
		session: session,
		logger:  logger.With(loggerNameKey, "effects"),
	}
}

func (e *EffectRunner) result(op string, err error, attrs ...any) EffectResult {
	r := EffectResult{Op: op, Err: err}
	if err != nil {
		attrs = append(attrs, tint.Err(err), "forbidden", r.Forbidden())
		e.logger.Warn("effect failed: "+op, attrs...)
	}
	return r
}

// RenameDisplay sets the user's guild nickname.
func (e *EffectRunner) RenameDisplay(scopeID, userID, name string) EffectResult {
	err := e.session.GuildMemberNickname(scopeID, userID, name)
	return e.result(
		"rename_display", err,
		"guild_id", scopeID,
		"user_id", userID,
	)
}

// SendNotice sends an embed to a channel. A positive ttl schedules the
// message for deletion once it elapses; the notice is ephemeral UI, not
// state.
func (e *EffectRunner) SendNotice(
	channelID string,
	embed *discordgo.MessageEmbed,
	ttl time.Duration,
) EffectResult {
	msg, err := e.session.ChannelMessageSendEmbed(channelID, embed)
	res := e.result("send_notice", err, "channel_id", channelID)
	if err == nil && ttl > 0 && msg != nil {
		e.deleteAfter(channelID, msg.ID, ttl)
	}
	return res
}

// SendText sends a plain text message to a channel, with the same TTL
// semantics as SendNotice.
func (e *EffectRunner) SendText(
	channelID string,
	content string,
	ttl time.Duration,
) EffectResult {
	msg, err := e.session.ChannelMessageSend(channelID, content)
	res := e.result("send_text", err, "channel_id", channelID)
	if err == nil && ttl > 0 && msg != nil {
		e.deleteAfter(channelID, msg.ID, ttl)
	}
	return res
}

// SendDirect delivers an embed to the user's DM channel.
func (e *EffectRunner) SendDirect(userID string, embed *discordgo.MessageEmbed) EffectResult {
	channel, err := e.session.UserChannelCreate(userID)
	if err != nil {
		return e.result("send_direct", err, "user_id", userID)
	}
	_, err = e.session.ChannelMessageSendEmbed(channel.ID, embed)
	return e.result("send_direct", err, "user_id", userID)
}

// SuspendUser applies a Discord timeout to the user.
func (e *EffectRunner) SuspendUser(
	scopeID, userID string,
	d time.Duration,
	reason string,
) EffectResult {
	until := time.Now().Add(d)
	err := e.session.GuildMemberTimeout(scopeID, userID, &until)
	return e.result(
		"suspend_user", err,
		"guild_id", scopeID,
		"user_id", userID,
		"duration", d,
		"reason", reason,
	)
}

// DeleteContent deletes a single message.
func (e *EffectRunner) DeleteContent(channelID, messageID string) EffectResult {
	err := e.session.ChannelMessageDelete(channelID, messageID)
	return e.result(
		"delete_content", err,
		"channel_id", channelID,
		"message_id", messageID,
	)
}

func (e *EffectRunner) deleteAfter(channelID, messageID string, ttl time.Duration) {
	time.AfterFunc(
		ttl, func() {
			if err := e.session.ChannelMessageDelete(channelID, messageID); err != nil {
				e.logger.Debug(
					"couldn't delete expired notice",
					"channel_id", channelID,
					"message_id", messageID,
					tint.Err(err),
				)
			}
		},
	)
}
