// Package http provides the HTTP server implementation for the planner bot.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ivandudin29/tg-notes-bot/internal/service"
	v1 "github.com/ivandudin29/tg-notes-bot/internal/transport/http/v1"
)

// NewServer creates the HTTP server carrying the chat webhook, the read API
// and health checks.
func NewServer(svc *service.Service, connections v1.ConnectionCounter) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	v1.NewHandler(svc, connections).RegisterRoutes(e)

	return e
}
