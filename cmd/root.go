package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/chaperonebot/chaperone/chaperone"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = chaperone.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "chaperone [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", chaperone.DefaultDatabase)
	viper.SetDefault("database_type", chaperone.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		chaperone.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		chaperone.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", chaperone.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", chaperone.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", chaperone.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.notification_channel_id", "")
	viper.SetDefault("discord.admin_role_ids", []string{})
	viper.SetDefault(
		"discord.log_level",
		chaperone.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		chaperone.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		chaperone.DefaultDiscordGatewayIntent,
	)
	viper.SetDefault(
		"discord.startup_message",
		chaperone.DefaultDiscordStartupNotice,
	)
	viper.SetDefault(
		"discord.custom_status",
		chaperone.DefaultDiscordCustomStatus,
	)

	// Moderation config
	viper.SetDefault("moderation.spam_threshold", chaperone.DefaultSpamThreshold)
	viper.SetDefault("moderation.spam_window", chaperone.DefaultSpamWindow)
	viper.SetDefault(
		"moderation.suspend_duration",
		chaperone.DefaultSuspendDuration,
	)
	viper.SetDefault("moderation.filtered_words", []string{})
	viper.SetDefault(
		"moderation.return_notice_ttl",
		chaperone.DefaultReturnNoticeTTL,
	)
	viper.SetDefault(
		"moderation.mention_notice_ttl",
		chaperone.DefaultMentionNoticeTTL,
	)
	viper.SetDefault(
		"moderation.warning_notice_ttl",
		chaperone.DefaultWarningNoticeTTL,
	)

	// AI config
	viper.SetDefault("ai.token", "")
	viper.SetDefault("ai.base_url", chaperone.DefaultAIBaseURL)
	viper.SetDefault("ai.model", chaperone.DefaultAIModel)
	viper.SetDefault("ai.max_tokens", chaperone.DefaultAIMaxTokens)
	viper.SetDefault("ai.system_prompt", chaperone.DefaultAISystemPrompt)
	viper.SetDefault("ai.cooldown", chaperone.DefaultAICooldown)
	viper.SetDefault(
		"ai.max_requests_per_second",
		chaperone.DefaultAIMaxRequestsPerSecond,
	)
	viper.SetDefault("ai.disabled_channel_ids", []string{})

	// API config
	viper.SetDefault("api.listen", chaperone.DefaultAPIListen)
	viper.SetDefault("api.cors_allow_origins", []string{})

	viper.SetEnvPrefix(chaperone.DefaultEnvPrefix)
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set(
		"discord.admin_role_ids",
		viper.GetStringSlice("discord.admin_role_ids"),
	)
	viper.Set(
		"moderation.filtered_words",
		viper.GetStringSlice("moderation.filtered_words"),
	)
	viper.Set(
		"ai.disabled_channel_ids",
		viper.GetStringSlice("ai.disabled_channel_ids"),
	)
	viper.Set(
		"api.cors_allow_origins",
		viper.GetStringSlice("api.cors_allow_origins"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
	} {
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

//nolint:gochecknoinits
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Env file to load",
	)
}
