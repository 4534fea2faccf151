package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/neenza/offsetauth"
	authmw "github.com/neenza/offsetauth/middleware"
)

type Deps struct {
	Engine *offsetauth.Engine
	Logger *slog.Logger
	// CORSOrigins lists the origins allowed to send credentialed requests.
	CORSOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewServer returns an echo instance with the common middleware and every
// route registered.
func NewServer(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e.Use(Common(logger, d.CORSOrigins)...)

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	health := &HealthHTTP{Engine: d.Engine}
	e.GET("/health/live", health.Live)
	e.GET("/health/ready", health.Ready)

	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	auth := NewAuthHTTP(d.Engine)
	e.POST("/token", auth.Login)
	e.POST("/refresh", auth.Refresh)
	e.POST("/logout", auth.LogOut)
	e.POST("/register", auth.Register)
	e.GET("/session/status", auth.SessionStatus)

	private := e.Group("")
	private.Use(echo.WrapMiddleware(authmw.Guard(d.Engine)))
	private.GET("/users/me", auth.Me)
}
