package handler

import (
	"context"
	"fmt"
	"net/http"

	"gowa-gateway/internal/metrics"
	"gowa-gateway/internal/ws"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type RouteConfig struct {
	// JWTSecret kosong = /send-message dan /events terbuka
	JWTSecret string
	Hub       *ws.Hub
	Metrics   *metrics.Metrics
}

// RegisterRoutes mounts the gateway endpoints on e.
func RegisterRoutes(ctx context.Context, e *echo.Echo, h *Handler, cfg RouteConfig) {
	e.GET("/health", h.Health)
	if cfg.Metrics != nil {
		e.GET("/metrics", cfg.Metrics.Handler())
	}

	var guard []echo.MiddlewareFunc
	if cfg.JWTSecret != "" {
		guard = append(guard, echojwt.WithConfig(echojwt.Config{
			SigningKey: []byte(cfg.JWTSecret),
			ErrorHandler: func(c echo.Context, err error) error {
				return ErrorResponse(c, http.StatusUnauthorized,
					"Authentication required. Please provide a valid Bearer token in the Authorization header.")
			},
		}))
	}

	e.POST("/send-message", h.SendMessage, guard...)
	if cfg.Hub != nil {
		e.GET("/events", WebSocketHandler(ctx, cfg.Hub), guard...)
	}
}

// HTTPErrorHandler renders framework errors (404, 405, panics) in the same envelope as handler errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal Server Error"

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		message = fmt.Sprintf("%v", he.Message)
	}
	// Custom message untuk error tertentu
	switch code {
	case http.StatusMethodNotAllowed:
		message = "Method not allowed for this endpoint"
	case http.StatusNotFound:
		message = "Endpoint not found"
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}
	ErrorResponse(c, code, message)
}
