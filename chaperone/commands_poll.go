package chaperone

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// pollNumberEmoji are the keycap reactions used for poll choices, in
// choice order.
var pollNumberEmoji = []string{
	"1️⃣", "2️⃣", "3️⃣", "4️⃣",
	"5️⃣",
}

const (
	voteUpEmoji   = "\U0001F44D"
	voteDownEmoji = "\U0001F44E"
)

func pollCommands() []*discordgo.ApplicationCommand {
	pollOpts := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "question",
			Description: "The poll question",
			Required:    true,
		},
	}
	for n := 1; n <= len(pollNumberEmoji); n++ {
		pollOpts = append(
			pollOpts, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        fmt.Sprintf("option%d", n),
				Description: fmt.Sprintf("Choice %d", n),
				Required:    n <= 2,
			},
		)
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdPoll,
			Description: "Start a multiple choice poll",
			Options:     pollOpts,
		},
		{
			Name:        cmdVote,
			Description: "Start a quick yes/no vote",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "What to vote on",
					Required:    true,
				},
			},
		},
	}
}

// respondWithReactions posts an embed response and adds the given
// reactions to it. Reactions require the message ID, so the response
// goes through the deferred/edit flow.
func (c *Chaperone) respondWithReactions(
	i *discordgo.InteractionCreate,
	embed *discordgo.MessageEmbed,
	reactions []string,
) {
	if err := c.respondDeferred(i); err != nil {
		return
	}
	msg, err := c.discord.session.InteractionResponseEdit(
		i.Interaction, &discordgo.WebhookEdit{
			Embeds: &[]*discordgo.MessageEmbed{embed},
		},
	)
	if err != nil {
		c.logger.Error("error posting poll", tint.Err(err))
		return
	}
	for _, emoji := range reactions {
		if err = c.discord.session.MessageReactionAdd(
			i.ChannelID, msg.ID, emoji,
		); err != nil {
			c.logger.Warn(
				"couldn't add poll reaction",
				"emoji", emoji,
				tint.Err(err),
			)
		}
	}
}

func (c *Chaperone) cmdPoll(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	question := opts.str("question")
	var choices []string
	for n := 1; n <= len(pollNumberEmoji); n++ {
		if choice := opts.str(fmt.Sprintf("option%d", n)); choice != "" {
			choices = append(choices, choice)
		}
	}
	if len(choices) < 2 {
		c.respondText(i, "A poll needs at least two choices.", true)
		return
	}
	var lines []string
	for n, choice := range choices {
		lines = append(
			lines, fmt.Sprintf("%s %s", pollNumberEmoji[n], choice),
		)
	}
	embed := &discordgo.MessageEmbed{
		Title:       question,
		Description: strings.Join(lines, "\n"),
		Color:       embedColorNotice,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf(
				"Poll by %s", interactionUser(i).Username,
			),
		},
	}
	c.respondWithReactions(i, embed, pollNumberEmoji[:len(choices)])
}

func (c *Chaperone) cmdVote(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	embed := &discordgo.MessageEmbed{
		Title:       "Vote",
		Description: opts.str("question"),
		Color:       embedColorNotice,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf(
				"Vote by %s", interactionUser(i).Username,
			),
		},
	}
	c.respondWithReactions(
		i, embed, []string{voteUpEmoji, voteDownEmoji},
	)
}
