package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/kiosk/internal/api/handlers"
	"github.com/your-org/kiosk/internal/api/ws"
	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/control"
	"github.com/your-org/kiosk/internal/presence"
	"github.com/your-org/kiosk/internal/roster"
)

type RouterConfig struct {
	APIKey   string
	Backend  *backend.Client
	Roster   *roster.Cache
	Presence *presence.Table
	Control  *control.Poller
	Hub      *ws.Hub
	Location *time.Location
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Backend, cfg.Roster, cfg.Control)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(APIKeyMiddleware(cfg.APIKey))

	// Live decision stream
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Attendance surfaces
	attH := handlers.NewAttendanceHandler(cfg.Presence, cfg.Roster, cfg.Backend, cfg.Location)
	v1.GET("/presence", attH.Presence)
	v1.GET("/hours", attH.Hours)

	return r
}
