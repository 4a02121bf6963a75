package chaperone

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Discord manages the gateway session: connecting, registering slash
// commands, and exposing the subset of the Discord API the bot uses.
type Discord struct {
	session           DiscordSessionHandler
	config            *DiscordConfig
	logger            *slog.Logger
	metricConnects    atomic.Int64
	metricDisconnects atomic.Int64
	connected         atomic.Bool
	removeHandlers    []func()
	bot               *Chaperone
}

func newDiscord(config *DiscordConfig) (*Discord, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("discord token not set")
	}
	return &Discord{
		config:         config,
		removeHandlers: []func(){},
	}, nil
}

// newSession initializes the underlying discordgo session with the
// configured logger, token and intents.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = false
	disc.Identify.Intents = d.config.GatewayIntents
	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		newLogHandler(os.Stdout, d.config.DiscordGoLogLevel),
	)
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}
	if err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level()); err != nil {
		return session, err
	}
	return session, nil
}

// Connected reports whether the gateway connection is currently up.
func (d *Discord) Connected() bool {
	return d.connected.Load()
}

func (d *Discord) handlerReady() func(s *discordgo.Session, r *discordgo.Ready) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info(
			"Ready",
			"session_id", r.SessionID,
			"user_id", r.User.ID,
			"username", r.User.Username,
			"guilds", len(r.Guilds),
		)
		if d.config.CustomStatus != "" {
			if err := d.session.UpdateCustomStatus(d.config.CustomStatus); err != nil {
				d.logger.Warn("unable to set custom status", tint.Err(err))
			}
		}
	}
}

func (d *Discord) handlerConnect() func(s *discordgo.Session, r *discordgo.Connect) {
	return func(s *discordgo.Session, r *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		d.logger.Info("Connected")
		if d.config.NotificationChannelID != "" && d.config.StartupMessage != "" {
			if _, err := d.session.ChannelMessageSend(
				d.config.NotificationChannelID,
				d.config.StartupMessage,
				discordgo.WithRetryOnRatelimit(false),
				discordgo.WithRestRetries(1),
			); err != nil {
				d.logger.Error("unable to send startup message", tint.Err(err))
			}
		}
	}
}

func (d *Discord) handlerDisconnect() func(s *discordgo.Session, r *discordgo.Disconnect) {
	return func(s *discordgo.Session, r *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)
		d.logger.Warn("disconnected")
	}
}

// registerCommands sends the bot's slash commands to the discord bulk
// overwrite endpoint.
func (d *Discord) registerCommands(
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("registered command", "name", c.Name, "id", c.ID)
	}
	return created, nil
}

// DiscordSessionHandler is the subset of discordgo.Session methods the
// bot uses, defined as an interface to enable testing with a stub
// session.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler registers a gateway event handler, returning a
	// function that removes it
	AddHandler(handler any) func()

	ChannelMessageSend(
		channelID string, content string, options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageDelete(
		channelID, messageID string, options ...discordgo.RequestOption,
	) error

	ChannelMessagesBulkDelete(
		channelID string, messages []string, options ...discordgo.RequestOption,
	) error

	ChannelMessages(
		channelID string,
		limit int,
		beforeID, afterID, aroundID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Message, error)

	ChannelEditComplex(
		channelID string,
		data *discordgo.ChannelEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	ChannelPermissionSet(
		channelID, targetID string,
		targetType discordgo.PermissionOverwriteType,
		allow, deny int64,
		options ...discordgo.RequestOption,
	) error

	GuildMemberNickname(
		guildID, userID, nickname string, options ...discordgo.RequestOption,
	) error

	GuildMemberTimeout(
		guildID, userID string,
		until *time.Time,
		options ...discordgo.RequestOption,
	) error

	GuildMemberDeleteWithReason(
		guildID, userID, reason string, options ...discordgo.RequestOption,
	) error

	GuildBanCreateWithReason(
		guildID, userID, reason string,
		days int,
		options ...discordgo.RequestOption,
	) error

	GuildBanDelete(
		guildID, userID string, options ...discordgo.RequestOption,
	) error

	GuildMemberRoleAdd(
		guildID, userID, roleID string, options ...discordgo.RequestOption,
	) error

	GuildMemberRoleRemove(
		guildID, userID, roleID string, options ...discordgo.RequestOption,
	) error

	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)

	GuildMember(
		guildID, userID string, options ...discordgo.RequestOption,
	) (*discordgo.Member, error)

	Channel(
		channelID string, options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	UserChannelCreate(
		recipientID string, options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	MessageReactionAdd(
		channelID, messageID, emojiID string, options ...discordgo.RequestOption,
	) error

	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	UpdateCustomStatus(status string) error

	// HeartbeatLatency returns the gateway round-trip time
	HeartbeatLatency() time.Duration

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session](https://pkg.go.dev/github.com/bwmarrin/discordgo#Session)
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	content string,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, content, options...)
}

func (d DiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendEmbed(channelID, embed, options...)
}

func (d DiscordSession) ChannelMessageDelete(
	channelID, messageID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.ChannelMessageDelete(channelID, messageID, options...)
}

func (d DiscordSession) ChannelMessagesBulkDelete(
	channelID string,
	messages []string,
	options ...discordgo.RequestOption,
) error {
	return d.session.ChannelMessagesBulkDelete(channelID, messages, options...)
}

func (d DiscordSession) ChannelMessages(
	channelID string,
	limit int,
	beforeID, afterID, aroundID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Message, error) {
	return d.session.ChannelMessages(
		channelID, limit, beforeID, afterID, aroundID, options...,
	)
}

func (d DiscordSession) ChannelEditComplex(
	channelID string,
	data *discordgo.ChannelEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.ChannelEditComplex(channelID, data, options...)
}

func (d DiscordSession) ChannelPermissionSet(
	channelID, targetID string,
	targetType discordgo.PermissionOverwriteType,
	allow, deny int64,
	options ...discordgo.RequestOption,
) error {
	return d.session.ChannelPermissionSet(
		channelID, targetID, targetType, allow, deny, options...,
	)
}

func (d DiscordSession) GuildMemberNickname(
	guildID, userID, nickname string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberNickname(guildID, userID, nickname, options...)
}

func (d DiscordSession) GuildMemberTimeout(
	guildID, userID string,
	until *time.Time,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberTimeout(guildID, userID, until, options...)
}

func (d DiscordSession) GuildMemberDeleteWithReason(
	guildID, userID, reason string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason, options...)
}

func (d DiscordSession) GuildBanCreateWithReason(
	guildID, userID, reason string,
	days int,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, days, options...)
}

func (d DiscordSession) GuildBanDelete(
	guildID, userID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildBanDelete(guildID, userID, options...)
}

func (d DiscordSession) GuildMemberRoleAdd(
	guildID, userID, roleID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID, options...)
}

func (d DiscordSession) GuildMemberRoleRemove(
	guildID, userID, roleID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID, options...)
}

func (d DiscordSession) Guild(
	guildID string,
	options ...discordgo.RequestOption,
) (*discordgo.Guild, error) {
	return d.session.Guild(guildID, options...)
}

func (d DiscordSession) Channel(
	channelID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.Channel(channelID, options...)
}

func (d DiscordSession) GuildMember(
	guildID, userID string,
	options ...discordgo.RequestOption,
) (*discordgo.Member, error) {
	return d.session.GuildMember(guildID, userID, options...)
}

func (d DiscordSession) UserChannelCreate(
	recipientID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.UserChannelCreate(recipientID, options...)
}

func (d DiscordSession) MessageReactionAdd(
	channelID, messageID, emojiID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.MessageReactionAdd(channelID, messageID, emojiID, options...)
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionRespond(interaction, resp, options...)
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.InteractionResponseEdit(interaction, newresp, options...)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return d.session.ApplicationCommandBulkOverwrite(
		appID, guildID, commands, options...,
	)
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) HeartbeatLatency() time.Duration {
	return d.session.HeartbeatLatency()
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl.Level() {
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("invalid log level: %s", lvl)
	}
	return nil
}

func (d DiscordSession) SetHTTPClient(client *http.Client) {
	d.session.Client = client
}

// memberDisplayName picks the best display name available on a message:
// guild nickname, then global name, then username.
func memberDisplayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user != nil {
		if user.GlobalName != "" {
			return user.GlobalName
		}
		return user.Username
	}
	return ""
}
