package chaperone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Chaperone is the bot: gateway session, message pipeline, slash
// commands, persistence and the status API, wired together from a
// validated Config.
type Chaperone struct {
	config  *Config
	logger  *slog.Logger
	writeDB DBI
	users   *userCache

	presence *PresenceTracker
	spam     *SpamDetector
	filter   *MessageFilter
	effects  *EffectRunner
	ai       *AIChat

	discord  *Discord
	handlers map[string]commandHandler
	api      *http.Server

	startedAt      time.Time
	messageCount   atomic.Int64
	commandCount   atomic.Int64
	filteredCount  atomic.Int64
	suspendedCount atomic.Int64
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}

// New creates the bot from the given config, opening the database and
// creating (but not opening) the gateway session.
func New(config *Config) (*Chaperone, error) {
	if config == nil {
		return nil, errors.New("nil config")
	}
	if err := configValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(
		newLogHandler(os.Stdout, config.LogLevel),
	).With(loggerNameKey, "chaperone")
	slog.SetDefault(logger)

	c := &Chaperone{
		config:    config,
		logger:    logger,
		startedAt: time.Now(),
	}

	gormLogger := newGORMLogger(
		newLogHandler(os.Stdout, config.DatabaseLogLevel),
		config.DatabaseSlowThreshold,
	)
	ctx, cancel := context.WithTimeout(
		context.Background(), config.StartupTimeout,
	)
	defer cancel()
	db, err := CreateDB(ctx, config.DatabaseType, config.Database, gormLogger)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	c.writeDB = NewDatabase(
		db,
		logger,
		config.DatabaseType == dbTypePostgres,
	)

	c.users = newUserCache(c.writeDB, logger)
	c.users.Load()

	c.discord, err = newDiscord(config.Discord)
	if err != nil {
		return nil, err
	}
	c.discord.logger = logger.With(loggerNameKey, "discord")
	c.discord.bot = c
	c.discord.config.httpClient = config.HTTPClient
	c.discord.session, err = c.discord.newSession()
	if err != nil {
		return nil, err
	}

	c.effects = NewEffectRunner(c.discord.session, logger)
	c.presence = NewPresenceTracker(
		NewGORMAwayStore(c.writeDB), c.effects, logger,
	)
	c.filter = NewMessageFilter(config.Moderation.FilteredWords)
	c.spam = NewSpamDetector(
		config.Moderation.SpamWindow,
		config.Moderation.SpamThreshold,
		config.Moderation.SuspendDuration,
		logger,
	)
	if config.AI != nil && config.AI.Token != "" {
		c.ai = NewAIChat(config.AI, c.filter, config.HTTPClient, logger)
	}
	c.handlers = c.commandHandlers()
	c.api = c.newAPIServer(logger.With(loggerNameKey, "api"))
	return c, nil
}

// registerGatewayHandlers attaches the bot's event handlers to the
// session, recording removal funcs for shutdown.
func (c *Chaperone) registerGatewayHandlers() {
	session := c.discord.session
	c.discord.removeHandlers = append(
		c.discord.removeHandlers,
		session.AddHandler(c.discord.handlerReady()),
		session.AddHandler(c.discord.handlerConnect()),
		session.AddHandler(c.discord.handlerDisconnect()),
		session.AddHandler(c.handleMessageCreate),
		session.AddHandler(c.handleInteractionCreate),
	)
}

// Run connects to the gateway, registers slash commands, and serves the
// status API until the context is canceled, then shuts down gracefully.
func (c *Chaperone) Run(ctx context.Context) error {
	c.logger.Info("starting", "version", Version, "config", c.config)
	c.registerGatewayHandlers()

	if err := c.discord.session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}
	if _, err := c.discord.registerCommands(botCommands()); err != nil {
		c.logger.Error("command registration failed", tint.Err(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(
		func() error {
			c.logger.Info("status API listening", "addr", c.api.Addr)
			if err := c.api.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	)
	group.Go(
		func() error {
			<-groupCtx.Done()
			c.shutdown()
			return nil
		},
	)
	return group.Wait()
}

// shutdown detaches gateway handlers, closes the session, and stops the
// status API within the configured timeout.
func (c *Chaperone) shutdown() {
	c.logger.Info("shutting down")
	for _, remove := range c.discord.removeHandlers {
		remove()
	}
	c.discord.removeHandlers = nil

	if err := c.discord.session.Close(); err != nil {
		c.logger.Error("error closing discord session", tint.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), c.config.ShutdownTimeout,
	)
	defer cancel()
	if err := c.api.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("error stopping status API", tint.Err(err))
	}
}
