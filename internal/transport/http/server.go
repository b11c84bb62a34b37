package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avolkov/chanhub/internal/auth"
	"github.com/avolkov/chanhub/internal/config"
	"github.com/avolkov/chanhub/internal/core"
	"github.com/avolkov/chanhub/internal/store"
)

// NewServer builds the HTTP server: REST collaborators under /api and the
// realtime endpoint at /ws.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	channelHandlers := NewChannelHandlers(st, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authorized := api.Group("")
	authorized.Use(AuthMiddleware(authService, logger))
	authorized.GET("/channels", channelHandlers.ListChannels)
	authorized.POST("/channels", channelHandlers.CreateChannel)
	authorized.GET("/channels/:id/members", channelHandlers.ListMembers)
	authorized.GET("/channels/:id/messages", channelHandlers.ListMessages)

	wsHandler := NewWSHandler(hub, authService, logger)
	router.GET("/ws", wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
