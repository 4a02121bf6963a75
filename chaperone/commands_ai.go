package chaperone

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type aiPromptKind int

const (
	aiPromptChat aiPromptKind = iota
	aiPromptAsk
	aiPromptSummarize
	aiPromptTranslate
	aiPromptAgent
	aiPromptRoleplay
)

func aiCommands() []*discordgo.ApplicationCommand {
	stringOpt := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        name,
			Description: desc,
			Required:    true,
		}
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdChat,
			Description: "Chat with the bot",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("message", "What to say"),
			},
		},
		{
			Name:        cmdAsk,
			Description: "Ask the bot a question",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("question", "The question to answer"),
			},
		},
		{
			Name:        cmdSummarize,
			Description: "Summarize a block of text",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("text", "The text to summarize"),
			},
		},
		{
			Name:        cmdTranslate,
			Description: "Translate text to another language",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("text", "The text to translate"),
				stringOpt("language", "Target language"),
			},
		},
		{
			Name:        cmdAgent,
			Description: "Give the bot a task to work through",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("task", "The task to complete"),
			},
		},
		{
			Name:        cmdRoleplay,
			Description: "Have the bot respond in character",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("character", "Who the bot should play"),
				stringOpt("message", "What to say to them"),
			},
		},
		{
			Name:        cmdAIStatus,
			Description: "Show AI relay status",
		},
	}
}

// buildAIPrompt renders the command-specific prompt framing.
func buildAIPrompt(kind aiPromptKind, opts optionMap) string {
	switch kind {
	case aiPromptAsk:
		return fmt.Sprintf(
			"Answer this question: %s", opts.str("question"),
		)
	case aiPromptSummarize:
		return fmt.Sprintf(
			"Summarize the following text concisely: %s", opts.str("text"),
		)
	case aiPromptTranslate:
		return fmt.Sprintf(
			"Translate the following text to %s: %s",
			opts.str("language"), opts.str("text"),
		)
	case aiPromptAgent:
		return fmt.Sprintf(
			"Work through this task step by step, then give the final "+
				"result: %s", opts.str("task"),
		)
	case aiPromptRoleplay:
		return fmt.Sprintf(
			"Respond in character as %s to: %s",
			opts.str("character"), opts.str("message"),
		)
	default:
		return opts.str("message")
	}
}

// aiCommand builds the handler for one of the AI relay commands. All of
// them share the same shape: cooldown check, deferred acknowledgement,
// completion request, edit in the cleaned response.
func (c *Chaperone) aiCommand(kind aiPromptKind) commandHandler {
	return func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
		opts optionMap,
	) {
		logger, ok := ContextLogger(ctx)
		if !ok {
			logger = c.logger
		}
		if c.ai == nil || c.config.AI.Token == "" {
			c.respondText(i, "AI features aren't configured.", true)
			return
		}
		if c.ai.ChannelDisabled(i.ChannelID) {
			c.respondText(i, "AI commands are disabled in this channel.", true)
			return
		}
		user := interactionUser(i)
		if user == nil {
			return
		}
		if c.ai.OnCooldown(user.ID) {
			c.respondText(
				i, fmt.Sprintf(
					"Please wait %s between AI requests.",
					c.config.AI.Cooldown,
				), true,
			)
			return
		}
		if err := c.respondDeferred(i); err != nil {
			return
		}
		c.ai.SetCooldown(user.ID)

		prompt := buildAIPrompt(kind, opts)
		response, err := c.ai.Generate(ctx, prompt, user.Username)
		if err != nil {
			logger.Warn("AI request failed", "user_id", user.ID)
		}
		c.editResponse(i, response)
	}
}

func (c *Chaperone) cmdAIStatus(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	configured := c.ai != nil && c.config.AI.Token != ""
	status := "not configured"
	if configured {
		status = "online"
	}
	embed := &discordgo.MessageEmbed{
		Title: "AI Status",
		Color: embedColorNotice,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Model", Value: c.config.AI.Model, Inline: true},
			{
				Name:   "Cooldown",
				Value:  c.config.AI.Cooldown.String(),
				Inline: true,
			},
		},
	}
	if configured {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Requests",
				Value:  fmt.Sprintf("%d", c.ai.RequestCount()),
				Inline: true,
			},
		)
	}
	c.respondEmbed(i, embed)
}
