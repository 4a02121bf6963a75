package chaperone

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

func serverCommands() []*discordgo.ApplicationCommand {
	userOpt := func(desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: desc,
			Required:    true,
		}
	}
	roleOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionRole,
		Name:        "role",
		Description: "Role to assign or remove",
		Required:    true,
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdRole,
			Description: "Assign or remove a user's role",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Give a user a role",
					Options: []*discordgo.ApplicationCommandOption{
						userOpt("User to give the role to"), roleOpt,
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Take a role from a user",
					Options: []*discordgo.ApplicationCommandOption{
						userOpt("User to take the role from"), roleOpt,
					},
				},
			},
		},
		{
			Name:        cmdRoles,
			Description: "List this server's roles",
		},
		{
			Name:        cmdAnnounce,
			Description: "Post an announcement",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Announcement text",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to post in (defaults to here)",
				},
			},
		},
		{
			Name:        cmdEmbed,
			Description: "Post a custom embed",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Embed title",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "Embed body",
					Required:    true,
				},
			},
		},
		{
			Name:        cmdChannelInfo,
			Description: "Show information about a channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to look up (defaults to here)",
				},
			},
		},
		{
			Name:        cmdSetStatus,
			Description: "Set the bot's custom status",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "status",
					Description: "Status text (empty to clear)",
				},
			},
		},
		{
			Name:        cmdIgnore,
			Description: "Block or unblock a user from using the bot",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("User to block"),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "remove",
					Description: "Unblock instead",
				},
			},
		},
		{
			Name:        cmdHelp,
			Description: "List the bot's commands",
		},
	}
}

// roleName resolves a role ID to its display name, via the interaction's
// resolved data when present, otherwise the guild's role list.
func (c *Chaperone) roleName(i *discordgo.InteractionCreate, roleID string) string {
	if resolved := i.ApplicationCommandData().Resolved; resolved != nil {
		if role, ok := resolved.Roles[roleID]; ok && role != nil {
			return role.Name
		}
	}
	if guild, err := c.discord.session.Guild(i.GuildID); err == nil {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				return role.Name
			}
		}
	}
	return roleID
}

func (c *Chaperone) cmdRole(
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

	target := c.resolvedUser(i, subOpts, "user")
	roleID := subOpts.role("role")
	if target == nil || roleID == "" {
		c.respondText(i, "Both a user and a role are required.", true)
		return
	}

	var err error
	action := ModerationActionRoleAdd
	verb := "Gave"
	if sub.Name == "remove" {
		err = c.discord.session.GuildMemberRoleRemove(
			i.GuildID, target.ID, roleID,
		)
		action = ModerationActionRoleRemove
		verb = "Removed"
	} else {
		err = c.discord.session.GuildMemberRoleAdd(
			i.GuildID, target.ID, roleID,
		)
	}
	if err != nil {
		c.logger.Error(
			"role change failed",
			"user_id", target.ID,
			"role_id", roleID,
			tint.Err(err),
		)
		c.respondText(i, "Couldn't change that role.", true)
		return
	}
	name := c.roleName(i, roleID)
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   action,
			Reason:   name,
			ActorID:  userID(interactionUser(i)),
		},
	)
	if sub.Name == "remove" {
		c.respondText(
			i, fmt.Sprintf("%s %s from %s.", verb, name, target.Username), false,
		)
		return
	}
	c.respondText(
		i, fmt.Sprintf("%s %s %s.", verb, target.Username, name), false,
	)
}

func (c *Chaperone) cmdRoles(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	if i.GuildID == "" {
		c.respondText(i, "This command only works in a server.", true)
		return
	}
	guild, err := c.discord.session.Guild(i.GuildID)
	if err != nil {
		c.logger.Error("error fetching guild", tint.Err(err))
		c.respondText(i, "Couldn't fetch this server's roles.", true)
		return
	}
	roles := make([]*discordgo.Role, 0, len(guild.Roles))
	for _, role := range guild.Roles {
		if role.ID == i.GuildID { // skip @everyone
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		c.respondText(i, "This server has no roles.", true)
		return
	}
	sort.Slice(
		roles, func(a, b int) bool {
			return roles[a].Position > roles[b].Position
		},
	)

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Roles (%d)", len(roles)),
		Color: embedColorNotice,
	}
	for _, role := range roles {
		if len(embed.Fields) == discordMaxEmbedFields {
			embed.Footer = &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf(
					"Showing %d of %d roles", discordMaxEmbedFields, len(roles),
				),
			}
			break
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:   role.Name,
				Value:  fmt.Sprintf("<@&%s>", role.ID),
				Inline: true,
			},
		)
	}
	c.respondEmbed(i, embed)
}

func (c *Chaperone) cmdAnnounce(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	message := strings.TrimSpace(opts.str("message"))
	if message == "" {
		c.respondText(i, "Nothing to announce.", true)
		return
	}
	channelID := opts.channel("channel")
	if channelID == "" {
		channelID = i.ChannelID
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Announcement",
		Description: truncate(message, discordMaxMessageLength),
		Color:       embedColorNotice,
	}
	if author := interactionUser(i); author != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Posted by " + author.Username,
		}
	}
	res := c.effects.SendNotice(channelID, embed, 0)
	if !res.Ok() {
		c.respondText(i, "Couldn't post the announcement.", true)
		return
	}
	c.respondText(i, fmt.Sprintf("Announced in <#%s>.", channelID), true)
}

func (c *Chaperone) cmdEmbed(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	title := strings.TrimSpace(opts.str("title"))
	description := strings.TrimSpace(opts.str("description"))
	if title == "" || description == "" {
		c.respondText(i, "Both a title and a description are required.", true)
		return
	}
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title:       title,
			Description: truncate(description, discordMaxMessageLength),
			Color:       embedColorNotice,
		},
	)
}

func (c *Chaperone) cmdChannelInfo(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	channelID := opts.channel("channel")
	if channelID == "" {
		channelID = i.ChannelID
	}
	channel, err := c.discord.session.Channel(channelID)
	if err != nil {
		c.logger.Error(
			"error fetching channel", "channel_id", channelID, tint.Err(err),
		)
		c.respondText(i, "Couldn't fetch that channel.", true)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: "#" + channel.Name,
		Color: embedColorNotice,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "ID", Value: channel.ID, Inline: true},
			{
				Name:   "Type",
				Value:  channelTypeName(channel.Type),
				Inline: true,
			},
		},
	}
	if channel.Topic != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name: "Topic", Value: channel.Topic,
			},
		)
	}
	if channel.RateLimitPerUser > 0 {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name: "Slowmode",
				Value: fmt.Sprintf(
					"%d seconds", channel.RateLimitPerUser,
				),
				Inline: true,
			},
		)
	}
	c.respondEmbed(i, embed)
}

func channelTypeName(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildNews:
		return "announcement"
	case discordgo.ChannelTypeGuildForum:
		return "forum"
	default:
		return fmt.Sprintf("type %d", t)
	}
}

func (c *Chaperone) cmdSetStatus(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	status := strings.TrimSpace(opts.str("status"))
	if err := c.discord.session.UpdateCustomStatus(status); err != nil {
		c.logger.Error("status update failed", tint.Err(err))
		c.respondText(i, "Couldn't update the status.", true)
		return
	}
	if status == "" {
		c.respondText(i, "Status cleared.", true)
		return
	}
	c.respondText(i, fmt.Sprintf("Status set to %q.", status), true)
}

func (c *Chaperone) cmdIgnore(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		c.respondText(i, "No user given.", true)
		return
	}
	unblock := opts.boolean("remove")
	if err := c.users.SetIgnored(target.ID, !unblock); err != nil {
		c.logger.Error(
			"ignore update failed", "user_id", target.ID, tint.Err(err),
		)
		c.respondText(i, "Couldn't update that user.", true)
		return
	}
	action := ModerationActionIgnore
	msg := fmt.Sprintf("%s is now blocked from using the bot.", target.Username)
	if unblock {
		action = ModerationActionUnignore
		msg = fmt.Sprintf("%s can use the bot again.", target.Username)
	}
	c.recordModeration(
		&ModerationEvent{
			UserID:   target.ID,
			Username: target.Username,
			GuildID:  i.GuildID,
			Action:   action,
			ActorID:  userID(interactionUser(i)),
		},
	)
	c.respondText(i, msg, true)
}

func (c *Chaperone) cmdHelp(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	cmds := botCommands()
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(
			lines, fmt.Sprintf("`/%s` %s", cmd.Name, cmd.Description),
		)
	}
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title:       "Commands",
			Description: truncate(strings.Join(lines, "\n"), discordMaxEmbedBody),
			Color:       embedColorNotice,
		},
	)
}
