package chaperone

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Slash command names.
const (
	// presence
	cmdAFK      = "afk"
	cmdAFKClear = "afk-clear"
	cmdAFKList  = "afk-list"

	// AI relay
	cmdChat      = "chat"
	cmdAsk       = "ask"
	cmdSummarize = "summarize"
	cmdTranslate = "translate"
	cmdAgent     = "agent"
	cmdRoleplay  = "roleplay"
	cmdAIStatus  = "ai-status"

	// moderation
	cmdKick     = "kick"
	cmdBan      = "ban"
	cmdUnban    = "unban"
	cmdTimeout  = "timeout"
	cmdUnmute   = "unmute"
	cmdWarn     = "warn"
	cmdClear    = "clear"
	cmdSlowmode = "slowmode"
	cmdNick     = "nick"
	cmdLock     = "lock"
	cmdUnlock   = "unlock"
	cmdFilter   = "filter"

	// server management
	cmdRole        = "role"
	cmdRoles       = "roles"
	cmdAnnounce    = "announce"
	cmdEmbed       = "embed"
	cmdChannelInfo = "channelinfo"
	cmdSetStatus   = "set-status"
	cmdIgnore      = "ignore"
	cmdHelp        = "help"

	// polls
	cmdPoll = "poll"
	cmdVote = "vote"

	// fun
	cmdCoinflip  = "coinflip"
	cmdRoll      = "roll"
	cmdEightBall = "8ball"
	cmdRPS       = "rps"
	cmdFact      = "fact"
	cmdJoke      = "joke"

	// utility
	cmdPing       = "ping"
	cmdServerInfo = "serverinfo"
	cmdUserInfo   = "userinfo"
	cmdAvatar     = "avatar"
	cmdBotInfo    = "botinfo"
)

const interactionTimeout = 30 * time.Second

var adminOnlyPermission = int64(discordgo.PermissionModerateMembers)

// commandHandler handles one slash command invocation. The interaction
// has not been acknowledged yet when the handler runs.
type commandHandler func(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
)

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func newOptionMap(i *discordgo.InteractionCreate) optionMap {
	data := i.ApplicationCommandData()
	opts := make(optionMap, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}
	return opts
}

func (o optionMap) str(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o optionMap) integer(name string) int64 {
	if opt, ok := o[name]; ok {
		return opt.IntValue()
	}
	return 0
}

func (o optionMap) user(name string, s *discordgo.Session) *discordgo.User {
	if opt, ok := o[name]; ok {
		return opt.UserValue(s)
	}
	return nil
}

func (o optionMap) boolean(name string) bool {
	if opt, ok := o[name]; ok {
		return opt.BoolValue()
	}
	return false
}

func (o optionMap) role(name string) string {
	if opt, ok := o[name]; ok {
		if role := opt.RoleValue(nil, ""); role != nil {
			return role.ID
		}
	}
	return ""
}

func (o optionMap) channel(name string) string {
	if opt, ok := o[name]; ok {
		if channel := opt.ChannelValue(nil); channel != nil {
			return channel.ID
		}
	}
	return ""
}

// resolvedUser returns a user option with its username populated: the
// raw option only carries the ID, so the full user comes from the
// interaction's resolved data, falling back to a member lookup.
func (c *Chaperone) resolvedUser(
	i *discordgo.InteractionCreate,
	opts optionMap,
	name string,
) *discordgo.User {
	user := opts.user(name, nil)
	if user == nil {
		return nil
	}
	if resolved := i.ApplicationCommandData().Resolved; resolved != nil {
		if full, ok := resolved.Users[user.ID]; ok && full != nil {
			return full
		}
	}
	if user.Username == "" && i.GuildID != "" {
		if member, err := c.discord.session.GuildMember(
			i.GuildID, user.ID,
		); err == nil && member.User != nil {
			return member.User
		}
	}
	return user
}

// commandHandlers maps command names to their handlers.
func (c *Chaperone) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		cmdAFK:      c.cmdAFK,
		cmdAFKClear: c.cmdAFKClear,
		cmdAFKList:  c.cmdAFKList,

		cmdChat:      c.aiCommand(aiPromptChat),
		cmdAsk:       c.aiCommand(aiPromptAsk),
		cmdSummarize: c.aiCommand(aiPromptSummarize),
		cmdTranslate: c.aiCommand(aiPromptTranslate),
		cmdAgent:     c.aiCommand(aiPromptAgent),
		cmdRoleplay:  c.aiCommand(aiPromptRoleplay),
		cmdAIStatus:  c.cmdAIStatus,

		cmdKick:     c.adminOnly(c.cmdKick),
		cmdBan:      c.adminOnly(c.cmdBan),
		cmdUnban:    c.adminOnly(c.cmdUnban),
		cmdTimeout:  c.adminOnly(c.cmdTimeout),
		cmdUnmute:   c.adminOnly(c.cmdUnmute),
		cmdWarn:     c.adminOnly(c.cmdWarn),
		cmdClear:    c.adminOnly(c.cmdClear),
		cmdSlowmode: c.adminOnly(c.cmdSlowmode),
		cmdNick:     c.adminOnly(c.cmdNick),
		cmdLock:     c.adminOnly(c.cmdLock),
		cmdUnlock:   c.adminOnly(c.cmdUnlock),
		cmdFilter:   c.adminOnly(c.cmdFilter),

		cmdRole:        c.adminOnly(c.cmdRole),
		cmdRoles:       c.cmdRoles,
		cmdAnnounce:    c.adminOnly(c.cmdAnnounce),
		cmdEmbed:       c.adminOnly(c.cmdEmbed),
		cmdChannelInfo: c.cmdChannelInfo,
		cmdSetStatus:   c.adminOnly(c.cmdSetStatus),
		cmdIgnore:      c.adminOnly(c.cmdIgnore),
		cmdHelp:        c.cmdHelp,

		cmdPoll: c.cmdPoll,
		cmdVote: c.cmdVote,

		cmdCoinflip:  c.cmdCoinflip,
		cmdRoll:      c.cmdRoll,
		cmdEightBall: c.cmdEightBall,
		cmdRPS:       c.cmdRPS,
		cmdFact:      c.cmdFact,
		cmdJoke:      c.cmdJoke,

		cmdPing:       c.cmdPing,
		cmdServerInfo: c.cmdServerInfo,
		cmdUserInfo:   c.cmdUserInfo,
		cmdAvatar:     c.cmdAvatar,
		cmdBotInfo:    c.cmdBotInfo,
	}
}

// handleInteractionCreate dispatches slash command interactions.
func (c *Chaperone) handleInteractionCreate(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	handler, ok := c.handlers[name]
	if !ok {
		c.logger.Warn("unknown command", "command", name)
		return
	}

	user := interactionUser(i)
	if user != nil {
		if rec, _, err := c.users.GetOrCreate(*user); err == nil && rec.Ignored {
			c.respondText(i, "You can't use this bot.", true)
			return
		}
	}

	logger := c.logger.With(
		slog.Group(
			"interaction",
			"command", name,
			"id", i.ID,
			"user_id", userID(user),
		),
	)
	logger.Info("received command")
	c.commandCount.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	handler(WithLogger(ctx, logger), i, newOptionMap(i))
}

// adminOnly wraps a handler with a moderator permission check: the
// invoking member must hold a configured admin role or moderation
// permissions.
func (c *Chaperone) adminOnly(next commandHandler) commandHandler {
	return func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
		opts optionMap,
	) {
		if !c.isModerator(i) {
			c.respondText(
				i, "You don't have permission to use this command.", true,
			)
			return
		}
		next(ctx, i, opts)
	}
}

// isModerator reports whether the interaction comes from a member with
// a configured admin role, or with moderation permissions on the guild.
func (c *Chaperone) isModerator(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if c.isAdminMember(i.Member) {
		return true
	}
	return i.Member.Permissions&adminOnlyPermission != 0
}

// respondText acknowledges an interaction with a plain text message.
func (c *Chaperone) respondText(
	i *discordgo.InteractionCreate,
	content string,
	ephemeral bool,
) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := c.discord.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   flags,
			},
		},
	)
	if err != nil {
		c.logger.Error("error responding to interaction", tint.Err(err))
	}
}

// respondEmbed acknowledges an interaction with an embed.
func (c *Chaperone) respondEmbed(
	i *discordgo.InteractionCreate,
	embed *discordgo.MessageEmbed,
) {
	err := c.discord.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
			},
		},
	)
	if err != nil {
		c.logger.Error("error responding to interaction", tint.Err(err))
	}
}

// respondDeferred acknowledges the interaction so a slow handler can
// edit in the real response later.
func (c *Chaperone) respondDeferred(i *discordgo.InteractionCreate) error {
	return c.discord.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		},
	)
}

// editResponse replaces a deferred acknowledgement with content.
func (c *Chaperone) editResponse(i *discordgo.InteractionCreate, content string) {
	content = truncate(content, discordMaxMessageLength)
	_, err := c.discord.session.InteractionResponseEdit(
		i.Interaction, &discordgo.WebhookEdit{Content: &content},
	)
	if err != nil {
		c.logger.Error("error editing interaction response", tint.Err(err))
	}
}

// interactionUser returns the invoking user for guild or DM interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func userID(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// botCommands is the full slash command surface, registered via bulk
// overwrite on startup.
func botCommands() []*discordgo.ApplicationCommand {
	var cmds []*discordgo.ApplicationCommand
	cmds = append(cmds, afkCommands()...)
	cmds = append(cmds, aiCommands()...)
	cmds = append(cmds, moderationCommands()...)
	cmds = append(cmds, serverCommands()...)
	cmds = append(cmds, pollCommands()...)
	cmds = append(cmds, funCommands()...)
	cmds = append(cmds, utilityCommands()...)
	return cmds
}
