package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	applogger "MetalPulse/pkg/logger"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
}

func TestServerCORSToggle(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		s := NewServer(applogger.Nop(), []Handler{pingHandler{}}, WithCORS(enabled), WithMetricsPath(""))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(echo.HeaderOrigin, "https://dashboard.example")
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		if enabled {
			assert.Equal(t, "https://dashboard.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		} else {
			assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		}
	}
}

func TestServerUnknownRouteUsesEnvelope(t *testing.T) {
	s := NewServer(applogger.Nop(), nil, WithMetricsPath(""))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)
}
