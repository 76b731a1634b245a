package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "MetalPulse/pkg/http"
)

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler serves /healthz.
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.Health(ctx); err != nil {
			return xhttp.ServiceUnavailableResponse(c, map[string]string{"clickhouse": err.Error()})
		}
	}
	return xhttp.DataResponse(c, http.StatusOK, map[string]string{"clickhouse": "ok"})
}
