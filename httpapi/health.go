package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/neenza/offsetauth"
)

type HealthHTTP struct {
	Engine *offsetauth.Engine
}

func (h *HealthHTTP) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Ready pings both stores. A store on its in-memory fallback still counts
// as ready and is flagged as degraded.
func (h *HealthHTTP) Ready(c echo.Context) error {
	health := h.Engine.Health(c.Request().Context())
	code := http.StatusOK
	if !health.Ready {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, echo.Map{
		"ready":             health.Ready,
		"users_degraded":    health.UsersDegraded,
		"sessions_degraded": health.SessionsDegraded,
		"latency_ms":        health.Latency.Milliseconds(),
	})
}
