package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireroom-server/internal/config"
	"github.com/vovakirdan/wireroom-server/internal/core"
	"github.com/vovakirdan/wireroom-server/internal/metrics"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
	wsPath      = "/ws"
)

// Hub is the part of core.Hub the transport needs.
type Hub interface {
	RegisterClient(c *core.Client) error
	UnregisterClient(c *core.Client) error
	HandleMessage(c *core.Client, msg []byte) error
	Rooms(ctx context.Context) ([]core.RoomInfo, error)
}

// Deps groups the optional collaborators of the HTTP server.
type Deps struct {
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewServer builds an HTTP server with the health, metrics, rooms and
// WebSocket routes.
func NewServer(hub Hub, cfg config.Config, logger *zerolog.Logger, deps Deps) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET(healthPath, healthHandler)
	if deps.Gatherer != nil {
		router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	rooms := NewRoomHandlers(hub, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms", rooms.ListRooms)
		api.GET("/rooms/*id", rooms.GetRoom)
	}

	router.GET(wsPath, gin.WrapH(NewWSHandler(hub, WSOptionsFrom(cfg), deps.Metrics, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
