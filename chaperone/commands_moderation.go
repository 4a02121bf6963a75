package chaperone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	purgeMaxMessages   = 100
	slowmodeMaxSeconds = 21600 // discord's ceiling, 6 hours
	banDeleteMaxDays   = 7
	timeoutMaxMinutes  = 40320 // 28 days, discord's ceiling
)

func moderationCommands() []*discordgo.ApplicationCommand {
	userOpt := func(desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: desc,
			Required:    true,
		}
	}
	reasonOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason for the action",
		Required:    false,
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdKick,
			Description: "Kick a user from the server",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to kick"), reasonOpt,
			},
		},
		{
			Name:        cmdBan,
			Description: "Ban a user from the server",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to ban"),
				reasonOpt,
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delete_days",
					Description: "Days of messages to delete (0-7)",
					MinValue:    float64Ptr(0),
					MaxValue:    banDeleteMaxDays,
				},
			},
		},
		{
			Name:        cmdUnban,
			Description: "Remove a user's ban",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "user_id",
					Description: "ID of the banned user",
					Required:    true,
				},
			},
		},
		{
			Name:        cmdTimeout,
			Description: "Time a user out",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to time out"),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Timeout length in minutes",
					Required:    true,
					MinValue:    float64Ptr(1),
					MaxValue:    timeoutMaxMinutes,
				},
				reasonOpt,
			},
		},
		{
			Name:        cmdUnmute,
			Description: "Remove a user's timeout",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to unmute"),
			},
		},
		{
			Name:        cmdWarn,
			Description: "Warn a user by DM",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to warn"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the warning",
					Required:    true,
				},
			},
		},
		{
			Name:        cmdClear,
			Description: "Bulk delete recent messages in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Number of messages to delete (1-100)",
					Required:    true,
					MinValue:    float64Ptr(1),
					MaxValue:    purgeMaxMessages,
				},
			},
		},
		{
			Name:        cmdSlowmode,
			Description: "Set this channel's slowmode interval",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Seconds between messages (0 disables)",
					Required:    true,
					MinValue:    float64Ptr(0),
					MaxValue:    slowmodeMaxSeconds,
				},
			},
		},
		{
			Name:        cmdNick,
			Description: "Change a user's nickname",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to rename"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "nickname",
					Description: "New nickname (empty to reset)",
				},
			},
		},
		{
			Name:        cmdLock,
			Description: "Lock this channel (deny sending for everyone)",
		},
		{
			Name:        cmdUnlock,
			Description: "Unlock this channel",
		},
		{
			Name:        cmdFilter,
			Description: "Manage the filtered word list",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a word to the filter",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "word",
							Description: "Word to filter",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a word from the filter",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "word",
							Description: "Word to remove",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List filtered words",
				},
			},
		},
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

func (c *Chaperone) cmdKick(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	reason := opts.str("reason")
	err := c.discord.session.GuildMemberDeleteWithReason(
		i.GuildID, target.ID, reason,
	)
	if err != nil {
		c.logger.Error("kick failed", "user_id", target.ID, tint.Err(err))
		c.respondText(i, "Couldn't kick that user.", true)
		return
	}
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   ModerationActionKick,
			Reason:   reason,
			ActorID:  userID(interactionUser(i)),
		},
	)
	c.respondText(
		i, fmt.Sprintf("Kicked %s. %s", target.Username, reason), false,
	)
}

func (c *Chaperone) cmdBan(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	reason := opts.str("reason")
	days := int(opts.integer("delete_days"))
	err := c.discord.session.GuildBanCreateWithReason(
		i.GuildID, target.ID, reason, days,
	)
	if err != nil {
		c.logger.Error("ban failed", "user_id", target.ID, tint.Err(err))
		c.respondText(i, "Couldn't ban that user.", true)
		return
	}
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   ModerationActionBan,
			Reason:   reason,
			ActorID:  userID(interactionUser(i)),
		},
	)
	c.respondText(
		i, fmt.Sprintf("Banned %s. %s", target.Username, reason), false,
	)
}

func (c *Chaperone) cmdUnban(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	targetID := strings.TrimSpace(opts.str("user_id"))
	if targetID == "" {
		c.respondText(i, "No user ID given.", true)
		return
	}
	if err := c.discord.session.GuildBanDelete(i.GuildID, targetID); err != nil {
		c.logger.Error("unban failed", "user_id", targetID, tint.Err(err))
		c.respondText(i, "Couldn't unban that user.", true)
		return
	}
	c.recordModeration(
		&ModerationEvent{
			UserID:  targetID,
			GuildID: i.GuildID,
			Action:  ModerationActionUnban,
			ActorID: userID(interactionUser(i)),
		},
	)
	c.respondText(i, fmt.Sprintf("Unbanned <@%s>.", targetID), false)
}

func (c *Chaperone) cmdTimeout(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	minutes := opts.integer("minutes")
	reason := opts.str("reason")
	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	err := c.discord.session.GuildMemberTimeout(i.GuildID, target.ID, &until)
	if err != nil {
		c.logger.Error("timeout failed", "user_id", target.ID, tint.Err(err))
		c.respondText(i, "Couldn't time out that user.", true)
		return
	}
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   ModerationActionTimeout,
			Reason:   reason,
			ActorID:  userID(interactionUser(i)),
		},
	)
	c.respondText(
		i, fmt.Sprintf(
			"Timed out %s for %d minutes. %s",
			target.Username, minutes, reason,
		), false,
	)
}

func (c *Chaperone) cmdUnmute(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	err := c.discord.session.GuildMemberTimeout(i.GuildID, target.ID, nil)
	if err != nil {
		c.logger.Error("unmute failed", "user_id", target.ID, tint.Err(err))
		c.respondText(i, "Couldn't unmute that user.", true)
		return
	}
	// a fresh start for their spam window too
	c.spam.Reset(target.ID)
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   ModerationActionUnmute,
			ActorID:  userID(interactionUser(i)),
		},
	)
	c.respondText(i, fmt.Sprintf("Unmuted %s.", target.Username), false)
}

func (c *Chaperone) cmdWarn(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	reason := opts.str("reason")
	res := c.effects.SendDirect(
		target.ID, &discordgo.MessageEmbed{
			Title:       "Warning",
			Description: "You've received a warning from the moderators.",
			Color:       embedColorModeration,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Reason", Value: reason},
			},
		},
	)
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   ModerationActionWarn,
			Reason:   reason,
			ActorID:  userID(interactionUser(i)),
		},
	)
	msg := fmt.Sprintf("Warned %s. %s", target.Username, reason)
	if !res.Ok() {
		msg += " (Couldn't DM them.)"
	}
	c.respondText(i, msg, false)
}

func (c *Chaperone) cmdClear(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	amount := int(opts.integer("amount"))
	if amount < 1 {
		amount = 1
	}
	if amount > purgeMaxMessages {
		amount = purgeMaxMessages
	}
	messages, err := c.discord.session.ChannelMessages(
		i.ChannelID, amount, "", "", "",
	)
	if err != nil {
		c.logger.Error("purge fetch failed", tint.Err(err))
		c.respondText(i, "Couldn't fetch messages to delete.", true)
		return
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	if len(ids) > 0 {
		if err = c.discord.session.ChannelMessagesBulkDelete(
			i.ChannelID, ids,
		); err != nil {
			c.logger.Error("purge delete failed", tint.Err(err))
			c.respondText(i, "Couldn't delete messages.", true)
			return
		}
	}
	c.recordModeration(
		&ModerationEvent{
			GuildID:   i.GuildID,
			ChannelID: i.ChannelID,
			Action:    ModerationActionPurge,
			Reason:    fmt.Sprintf("%d messages", len(ids)),
			ActorID:   userID(interactionUser(i)),
		},
	)
	c.respondText(
		i, fmt.Sprintf("Deleted %d messages.", len(ids)), true,
	)
}

func (c *Chaperone) cmdSlowmode(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	seconds := int(opts.integer("seconds"))
	_, err := c.discord.session.ChannelEditComplex(
		i.ChannelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds},
	)
	if err != nil {
		c.logger.Error("slowmode failed", tint.Err(err))
		c.respondText(i, "Couldn't update slowmode.", true)
		return
	}
	if seconds == 0 {
		c.respondText(i, "Slowmode disabled.", false)
		return
	}
	c.respondText(
		i, fmt.Sprintf("Slowmode set to %d seconds.", seconds), false,
	)
}

func (c *Chaperone) cmdNick(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	nickname := opts.str("nickname")
	err := c.discord.session.GuildMemberNickname(
		i.GuildID, target.ID, nickname,
	)
	if err != nil {
		c.logger.Error("nick failed", "user_id", target.ID, tint.Err(err))
		c.respondText(i, "Couldn't change that nickname.", true)
		return
	}
	if nickname == "" {
		c.respondText(
			i, fmt.Sprintf("Reset %s's nickname.", target.Username), false,
		)
		return
	}
	c.respondText(
		i, fmt.Sprintf(
			"Renamed %s to %s.", target.Username, nickname,
		), false,
	)
}

// setChannelLocked toggles the send-messages permission for the guild's
// everyone role, whose ID equals the guild ID.
func (c *Chaperone) setChannelLocked(
	i *discordgo.InteractionCreate,
	locked bool,
) error {
	var allow, deny int64
	if locked {
		deny = discordgo.PermissionSendMessages
	} else {
		allow = discordgo.PermissionSendMessages
	}
	return c.discord.session.ChannelPermissionSet(
		i.ChannelID,
		i.GuildID,
		discordgo.PermissionOverwriteTypeRole,
		allow,
		deny,
	)
}

func (c *Chaperone) cmdLock(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	if err := c.setChannelLocked(i, true); err != nil {
		c.logger.Error("lock failed", tint.Err(err))
		c.respondText(i, "Couldn't lock this channel.", true)
		return
	}
	c.respondText(i, "Channel locked.", false)
}

func (c *Chaperone) cmdUnlock(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	if err := c.setChannelLocked(i, false); err != nil {
		c.logger.Error("unlock failed", tint.Err(err))
		c.respondText(i, "Couldn't unlock this channel.", true)
		return
	}
	c.respondText(i, "Channel unlocked.", false)
}

func (c *Chaperone) cmdFilter(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	var sub *discordgo.ApplicationCommandInteractionDataOption
	for _, opt := range opts {
		sub = opt
	}
	if sub == nil {
		return
	}
	subOpts := make(optionMap, len(sub.Options))
	for _, opt := range sub.Options {
		subOpts[opt.Name] = opt
	}

	switch sub.Name {
	case "add":
		word := subOpts.str("word")
		c.filter.AddWord(word)
		c.respondText(i, "Added to the filter list.", true)
	case "remove":
		word := subOpts.str("word")
		if c.filter.RemoveWord(word) {
			c.respondText(i, "Removed from the filter list.", true)
		} else {
			c.respondText(i, "That word isn't in the filter list.", true)
		}
	case "list":
		words := c.filter.Words()
		if len(words) == 0 {
			c.respondText(i, "The filter list is empty.", true)
			return
		}
		c.respondText(
			i, fmt.Sprintf(
				"Filtered words (%d): %s",
				len(words), strings.Join(words, ", "),
			), true,
		)
	}
}
