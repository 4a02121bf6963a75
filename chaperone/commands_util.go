package chaperone

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

func utilityCommands() []*discordgo.ApplicationCommand {
	optionalUser := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: "User to look up (defaults to you)",
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdPing,
			Description: "Check the bot's latency",
		},
		{
			Name:        cmdServerInfo,
			Description: "Show information about this server",
		},
		{
			Name:        cmdUserInfo,
			Description: "Show information about a user",
			Options:     []*discordgo.ApplicationCommandOption{optionalUser},
		},
		{
			Name:        cmdAvatar,
			Description: "Show a user's avatar",
			Options:     []*discordgo.ApplicationCommandOption{optionalUser},
		},
		{
			Name:        cmdBotInfo,
			Description: "Show bot version and statistics",
		},
	}
}

func (c *Chaperone) cmdPing(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	latency := c.discord.session.HeartbeatLatency()
	c.respondText(
		i, fmt.Sprintf(
			"Pong! Gateway latency: %dms", latency.Milliseconds(),
		), false,
	)
}

func (c *Chaperone) cmdServerInfo(
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
		c.respondText(i, "Couldn't fetch server info.", true)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: guild.Name,
		Color: embedColorNotice,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "ID", Value: guild.ID, Inline: true},
			{Name: "Owner", Value: fmt.Sprintf("<@%s>", guild.OwnerID), Inline: true},
			{
				Name:   "Members",
				Value:  fmt.Sprintf("%d", guild.MemberCount),
				Inline: true,
			},
			{
				Name:   "Channels",
				Value:  fmt.Sprintf("%d", len(guild.Channels)),
				Inline: true,
			},
			{
				Name:   "Roles",
				Value:  fmt.Sprintf("%d", len(guild.Roles)),
				Inline: true,
			},
		},
	}
	if guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: guild.IconURL("256"),
		}
	}
	c.respondEmbed(i, embed)
}

func (c *Chaperone) cmdUserInfo(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		target = interactionUser(i)
	}
	if target == nil {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: target.Username,
		Color: embedColorNotice,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: target.AvatarURL("256"),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "ID", Value: target.ID, Inline: true},
			{
				Name:   "Bot",
				Value:  fmt.Sprintf("%t", target.Bot),
				Inline: true,
			},
		},
	}
	if target.GlobalName != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Display Name",
				Value:  target.GlobalName,
				Inline: true,
			},
		)
	}
	if i.GuildID != "" {
		if member, err := c.discord.session.GuildMember(
			i.GuildID, target.ID,
		); err == nil {
			if member.Nick != "" {
				embed.Fields = append(
					embed.Fields, &discordgo.MessageEmbedField{
						Name:   "Nickname",
						Value:  member.Nick,
						Inline: true,
					},
				)
			}
			if !member.JoinedAt.IsZero() {
				embed.Fields = append(
					embed.Fields, &discordgo.MessageEmbedField{
						Name:   "Joined",
						Value:  member.JoinedAt.Format("2006-01-02"),
						Inline: true,
					},
				)
			}
		}
	}
	if c.presence.IsAway(target.ID) {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name: "Status", Value: "AFK", Inline: true,
			},
		)
	}
	c.respondEmbed(i, embed)
}

func (c *Chaperone) cmdAvatar(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	target := c.resolvedUser(i, opts, "user")
	if target == nil {
		target = interactionUser(i)
	}
	if target == nil {
		return
	}
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title: fmt.Sprintf("%s's avatar", target.Username),
			Color: embedColorNotice,
			Image: &discordgo.MessageEmbedImage{
				URL: target.AvatarURL("1024"),
			},
		},
	)
}

func (c *Chaperone) cmdBotInfo(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title: "Chaperone",
			Color: embedColorNotice,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Version", Value: Version, Inline: true},
				{Name: "Go", Value: runtime.Version(), Inline: true},
				{
					Name:   "Uptime",
					Value:  shortDuration(time.Since(c.startedAt)),
					Inline: true,
				},
				{
					Name:   "Messages Seen",
					Value:  fmt.Sprintf("%d", c.messageCount.Load()),
					Inline: true,
				},
				{
					Name:   "Commands Handled",
					Value:  fmt.Sprintf("%d", c.commandCount.Load()),
					Inline: true,
				},
				{
					Name:   "AFK Users",
					Value:  fmt.Sprintf("%d", len(c.presence.ListAway())),
					Inline: true,
				},
			},
		},
	)
}
