package chaperone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func afkCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdAFK,
			Description: "Mark yourself AFK",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why you're going away",
					Required:    false,
				},
			},
		},
		{
			Name:        cmdAFKClear,
			Description: "Clear your AFK status",
		},
		{
			Name:        cmdAFKList,
			Description: "List users who are currently AFK",
		},
	}
}

func (c *Chaperone) cmdAFK(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	user := interactionUser(i)
	if user == nil || i.GuildID == "" {
		c.respondText(i, "This command only works in a server.", true)
		return
	}
	reason := opts.str("reason")
	display := memberDisplayName(i.Member, user)

	rec, err := c.presence.MarkAway(user.ID, i.GuildID, reason, display)
	if errors.Is(err, ErrAlreadyAway) {
		c.respondText(i, "You're already marked AFK.", true)
		return
	}
	if err != nil {
		c.respondText(i, "Couldn't set your AFK status.", true)
		return
	}
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title: "AFK",
			Description: fmt.Sprintf(
				"%s is now AFK: %s", user.Mention(), rec.Reason,
			),
			Color: embedColorNotice,
		},
	)
}

func (c *Chaperone) cmdAFKClear(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	notice, err := c.presence.ClearAway(
		Activity{
			UserID:   user.ID,
			Username: user.Username,
			ScopeID:  i.GuildID,
			At:       time.Now(),
		},
	)
	if errors.Is(err, ErrNotAway) {
		c.respondText(i, "You're not marked AFK.", true)
		return
	}
	if err != nil {
		c.respondText(i, "Couldn't clear your AFK status.", true)
		return
	}
	c.respondText(
		i, fmt.Sprintf(
			"Welcome back! You were away for %s.",
			shortDuration(notice.AwayFor),
		), false,
	)
}

func (c *Chaperone) cmdAFKList(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	records := c.presence.ListAway()
	if len(records) == 0 {
		c.respondText(i, "Nobody is AFK right now.", true)
		return
	}
	var lines []string
	for _, rec := range records {
		lines = append(
			lines, fmt.Sprintf(
				"<@%s> - %s (%s ago)",
				rec.UserID,
				rec.Reason,
				shortDuration(time.Since(rec.Since)),
			),
		)
	}
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("AFK Users (%d)", len(records)),
			Description: strings.Join(lines, "\n"),
			Color:       embedColorNotice,
		},
	)
}
