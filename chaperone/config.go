//nolint:lll // struct tags can't be split
package chaperone

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	DefaultEnvPrefix       = "CHAPERONE"
	DefaultDatabaseType    = "sqlite"
	DefaultDatabase        = "chaperone.sqlite3"
	DefaultLogLevel        = slog.LevelInfo
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultDatabaseSlowThreshold = 200 * time.Millisecond
	DefaultDatabaseLogLevel      = slog.LevelInfo
	DefaultDiscordLogLevel       = slog.LevelWarn
	DefaultDiscordgoLogLevel     = slog.LevelWarn

	// DefaultSpamThreshold is the number of messages within the spam window
	// above which a user is suspended.
	DefaultSpamThreshold = 5

	// DefaultSpamWindow is the sliding window over which user activity
	// counts toward the spam threshold.
	DefaultSpamWindow = time.Minute

	// DefaultSuspendDuration is how long a user is timed out when the
	// spam threshold is exceeded.
	DefaultSuspendDuration = 5 * time.Minute

	// DefaultCapsRatio is the uppercase-to-letters ratio above which a
	// message counts as excessive caps.
	DefaultCapsRatio = 0.7

	DefaultAICooldown             = 3 * time.Second
	DefaultAIMaxTokens            = 1500
	DefaultAIModel                = "google/gemma-3-12b-it:free"
	DefaultAIBaseURL              = "https://openrouter.ai/api/v1"
	DefaultAIMaxRequestsPerSecond = 1

	DefaultReturnNoticeTTL  = 10 * time.Second
	DefaultMentionNoticeTTL = 15 * time.Second
	DefaultWarningNoticeTTL = 10 * time.Second

	DefaultAPIListen            = "127.0.0.1:5000"
	DefaultDiscordCustomStatus  = "for commands | /chat"
	DefaultDiscordStartupNotice = "I'm here!"

	DefaultDiscordGatewayIntent = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildMembers

	discordMaxMessageLength  = 2000
	discordMaxNicknameLength = 32
	discordMaxEmbedFields    = 25
	discordMaxEmbedBody      = 4096
)

// DefaultAISystemPrompt is used when no system prompt is configured.
const DefaultAISystemPrompt = "You are a helpful Discord bot assistant. " +
	"Respond naturally in plain text without any formatting symbols, " +
	"brackets, parentheses, slashes, or special characters. Keep responses " +
	"concise, friendly, and conversational like a normal person would speak. " +
	"Never use markdown formatting, code blocks, or any special symbols in " +
	"your responses. Just reply with clean, simple text that flows naturally " +
	"in conversation. If asked about inappropriate content, politely decline " +
	"and suggest something else."

// Config is the top-level configuration, loaded via viper in cmd/.
type Config struct {
	// Database connection string
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// Discord configures the bot connection and identity
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// Moderation configures the spam detector and content filter
	Moderation *ModerationConfig `yaml:"moderation" mapstructure:"moderation" json:"moderation"`

	// AI configures the hosted completion endpoint relay
	AI *AIConfig `yaml:"ai" mapstructure:"ai" json:"ai"`

	// API configures the status/health HTTP server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout limits how long the bot has to initialize before
	// aborting startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After
	// this elapses, remaining connections are force-closed.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `yaml:"-" mapstructure:"-" json:"-"`
}

// DiscordConfig configures the discord bot itself.
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" binding:"required"`

	// Discord application ID
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// NotificationChannelID, if set, receives StartupMessage when the bot
	// connects to the gateway.
	NotificationChannelID string `yaml:"notification_channel_id" mapstructure:"notification_channel_id" json:"notification_channel_id"`

	// StartupMessage is sent to NotificationChannelID on connect
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	// CustomStatus is the bot's activity line
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	// AdminRoleIDs are guild role IDs exempt from auto-moderation and
	// allowed to use admin-only commands
	AdminRoleIDs []string `yaml:"admin_role_ids" mapstructure:"admin_role_ids" json:"admin_role_ids"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Discord gateway intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// ModerationConfig configures the spam detector and content filter.
type ModerationConfig struct {
	// SpamThreshold is the message count above which, within SpamWindow,
	// a user is suspended
	SpamThreshold int `yaml:"spam_threshold" mapstructure:"spam_threshold" json:"spam_threshold" binding:"min=1"`

	// SpamWindow is the sliding window for spam detection
	SpamWindow time.Duration `yaml:"spam_window" mapstructure:"spam_window" json:"spam_window"`

	// SuspendDuration is the timeout applied on a spam trigger
	SuspendDuration time.Duration `yaml:"suspend_duration" mapstructure:"suspend_duration" json:"suspend_duration"`

	// FilteredWords are forbidden terms, matched both as whole tokens and
	// as raw substrings
	FilteredWords []string `yaml:"filtered_words" mapstructure:"filtered_words" json:"filtered_words"`

	// ReturnNoticeTTL is how long "welcome back" notices stay visible
	ReturnNoticeTTL time.Duration `yaml:"return_notice_ttl" mapstructure:"return_notice_ttl" json:"return_notice_ttl"`

	// MentionNoticeTTL is how long "user is AFK" notices stay visible
	MentionNoticeTTL time.Duration `yaml:"mention_notice_ttl" mapstructure:"mention_notice_ttl" json:"mention_notice_ttl"`

	// WarningNoticeTTL is how long in-channel filter warnings stay visible
	WarningNoticeTTL time.Duration `yaml:"warning_notice_ttl" mapstructure:"warning_notice_ttl" json:"warning_notice_ttl"`
}

// AIConfig configures the OpenRouter-compatible completion relay.
type AIConfig struct {
	// API token for the completion endpoint
	Token string `yaml:"token" mapstructure:"token" json:"token"`

	// BaseURL of the OpenAI-compatible API
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url"`

	// Model identifier sent with each completion request
	Model string `yaml:"model" mapstructure:"model" json:"model"`

	// MaxTokens per completion
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens"`

	// SystemPrompt prepended to every conversation
	SystemPrompt string `yaml:"system_prompt" mapstructure:"system_prompt" json:"system_prompt"`

	// Cooldown between AI requests, per user
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown" json:"cooldown"`

	// MaxRequestsPerSecond limits outbound completion requests
	MaxRequestsPerSecond int `yaml:"max_requests_per_second" mapstructure:"max_requests_per_second" json:"max_requests_per_second"`

	// DisabledChannelIDs are channels where the AI relay refuses requests
	DisabledChannelIDs []string `yaml:"disabled_channel_ids" mapstructure:"disabled_channel_ids" json:"disabled_channel_ids"`
}

// APIConfig configures the status/health HTTP server.
type APIConfig struct {
	// Listen address, e.g. "127.0.0.1:5000"
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required"`

	// CORSAllowOrigins for the status endpoints
	CORSAllowOrigins []string `yaml:"cors_allow_origins" mapstructure:"cors_allow_origins" json:"cors_allow_origins"`
}

// LogValue redacts secrets when the config is logged.
func (c Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("database", c.Database),
		slog.String("database_type", c.DatabaseType),
		slog.Duration("startup_timeout", c.StartupTimeout),
		slog.Duration("shutdown_timeout", c.ShutdownTimeout),
	}
	if c.Discord != nil {
		attrs = append(
			attrs,
			slog.Group(
				"discord",
				slog.String("token", "[redacted]"),
				slog.String("application_id", c.Discord.ApplicationID),
				slog.String("guild_id", c.Discord.GuildID),
			),
		)
	}
	if c.AI != nil {
		attrs = append(
			attrs,
			slog.Group(
				"ai",
				slog.String("token", "[redacted]"),
				slog.String("base_url", c.AI.BaseURL),
				slog.String("model", c.AI.Model),
			),
		)
	}
	return slog.GroupValue(attrs...)
}

func newLevelVar(level slog.Level) *slog.LevelVar {
	v := &slog.LevelVar{}
	v.Set(level)
	return v
}

// DefaultConfig returns a Config with all defaults set. cmd/ overlays
// file/env values on top of this via viper.
func DefaultConfig() *Config {
	return &Config{
		Database:              DefaultDatabase,
		DatabaseType:          DefaultDatabaseType,
		DatabaseLogLevel:      newLevelVar(DefaultDatabaseLogLevel),
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              newLevelVar(DefaultLogLevel),
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		Discord: &DiscordConfig{
			LogLevel:          newLevelVar(DefaultDiscordLogLevel),
			DiscordGoLogLevel: newLevelVar(DefaultDiscordgoLogLevel),
			GatewayIntents:    DefaultDiscordGatewayIntent,
			StartupMessage:    DefaultDiscordStartupNotice,
			CustomStatus:      DefaultDiscordCustomStatus,
		},
		Moderation: &ModerationConfig{
			SpamThreshold:    DefaultSpamThreshold,
			SpamWindow:       DefaultSpamWindow,
			SuspendDuration:  DefaultSuspendDuration,
			ReturnNoticeTTL:  DefaultReturnNoticeTTL,
			MentionNoticeTTL: DefaultMentionNoticeTTL,
			WarningNoticeTTL: DefaultWarningNoticeTTL,
		},
		AI: &AIConfig{
			BaseURL:              DefaultAIBaseURL,
			Model:                DefaultAIModel,
			MaxTokens:            DefaultAIMaxTokens,
			SystemPrompt:         DefaultAISystemPrompt,
			Cooldown:             DefaultAICooldown,
			MaxRequestsPerSecond: DefaultAIMaxRequestsPerSecond,
		},
		API: &APIConfig{
			Listen: DefaultAPIListen,
		},
	}
}
