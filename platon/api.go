package platon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

// statusResponse is the payload of GET /api/status.
type statusResponse struct {
	StartedAt          time.Time `json:"started_at"`
	Uptime             string    `json:"uptime"`
	DiscordConnected   bool      `json:"discord_connected"`
	GatewayConnects    int64     `json:"gateway_connects"`
	GatewayDisconnects int64     `json:"gateway_disconnects"`
	CommandsHandled    int64     `json:"commands_handled"`
	ComponentsHandled  int64     `json:"components_handled"`
	DailyResets        int64     `json:"daily_resets"`
}

// API is the read-only status HTTP server. It exposes liveness and a
// small runtime snapshot; it never mutates bot state and carries no
// authentication, so it should only listen on loopback or a private
// interface.
type API struct {
	config     *APIConfig
	logger     *slog.Logger
	httpServer *http.Server
	listen     func(network, addr string) (net.Listener, error)
	p          *Platon
}

func newAPI(p *Platon, cfg *APIConfig) *API {
	api := &API{
		config: cfg,
		logger: p.logger.With(loggerNameKey, "api"),
		listen: net.Listen,
		p:      p,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(api.ginLogger(), gin.Recovery())
	if len(cfg.CORSAllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CORSAllowOrigins
		engine.Use(cors.New(corsConfig))
	}

	engine.GET("/healthz", api.handleHealthz)
	engine.GET("/api/status", api.handleStatus)

	api.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return api
}

func (a *API) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) handleStatus(c *gin.Context) {
	p := a.p
	c.JSON(http.StatusOK, statusResponse{
		StartedAt:          p.startedAt,
		Uptime:             time.Since(p.startedAt).Round(time.Second).String(),
		DiscordConnected:   p.discord.connected.Load(),
		GatewayConnects:    p.discord.metricConnects.Load(),
		GatewayDisconnects: p.discord.metricDisconnects.Load(),
		CommandsHandled:    p.metricCommands.Load(),
		ComponentsHandled:  p.metricComponents.Load(),
		DailyResets:        p.metricDailyResets.Load(),
	})
}

// Serve listens and serves until the listener closes. It returns nil on
// a graceful shutdown.
func (a *API) Serve() error {
	listener, err := a.listen(a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
	}
	a.logger.Info("status API listening", "address", listener.Addr().String())
	if err = a.httpServer.Serve(listener); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting up to the context
// deadline for in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

// ginLogger logs each request at debug, and at warn for non-2xx statuses.
func (a *API) ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, tint.Err(errors.New(c.Errors.String())))
		}
		if c.Writer.Status() >= http.StatusMultipleChoices {
			a.logger.Warn("request", attrs...)
		} else {
			a.logger.Debug("request", attrs...)
		}
	}
}
