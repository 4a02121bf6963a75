package chaperone

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// botStatus is the payload served by the status endpoint.
type botStatus struct {
	Name             string        `json:"name"`
	Version          string        `json:"version"`
	Connected        bool          `json:"connected"`
	Uptime           string        `json:"uptime"`
	GatewayLatencyMS int64         `json:"gateway_latency_ms"`
	MessagesSeen     int64         `json:"messages_seen"`
	CommandsHandled  int64         `json:"commands_handled"`
	MessagesFiltered int64         `json:"messages_filtered"`
	UsersSuspended   int64         `json:"users_suspended"`
	AwayUsers        int           `json:"away_users"`
	StartedAt        time.Time     `json:"started_at"`
}

func (c *Chaperone) status() botStatus {
	var latency time.Duration
	connected := false
	if c.discord != nil && c.discord.session != nil {
		connected = c.discord.Connected()
		latency = c.discord.session.HeartbeatLatency()
	}
	return botStatus{
		Name:             "chaperone",
		Version:          Version,
		Connected:        connected,
		Uptime:           time.Since(c.startedAt).Round(time.Second).String(),
		GatewayLatencyMS: latency.Milliseconds(),
		MessagesSeen:     c.messageCount.Load(),
		CommandsHandled:  c.commandCount.Load(),
		MessagesFiltered: c.filteredCount.Load(),
		UsersSuspended:   c.suspendedCount.Load(),
		AwayUsers:        len(c.presence.ListAway()),
		StartedAt:        c.startedAt,
	}
}

// newAPIEngine builds the status HTTP routes: a keep-alive root, a
// status snapshot, and a health check that fails while the gateway
// connection is down.
func (c *Chaperone) newAPIEngine(logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(c.config.API.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = c.config.API.CORSAllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	engine.Use(cors.New(corsConfig))

	engine.Use(
		func(ctx *gin.Context) {
			started := time.Now()
			ctx.Next()
			logger.Debug(
				"api request",
				"method", ctx.Request.Method,
				"path", ctx.Request.URL.Path,
				"status", ctx.Writer.Status(),
				"duration", time.Since(started),
			)
		},
	)

	engine.GET(
		"/", func(ctx *gin.Context) {
			ctx.String(http.StatusOK, "Bot is alive!")
		},
	)
	engine.GET(
		"/status", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, c.status())
		},
	)
	engine.GET(
		"/health", func(ctx *gin.Context) {
			if c.discord == nil || !c.discord.Connected() {
				ctx.JSON(
					http.StatusServiceUnavailable,
					gin.H{"healthy": false},
				)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"healthy": true})
		},
	)
	return engine
}

// newAPIServer wraps the engine in an http.Server bound to the
// configured listen address.
func (c *Chaperone) newAPIServer(logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              c.config.API.Listen,
		Handler:           c.newAPIEngine(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
