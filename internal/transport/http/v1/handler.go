// Package v1 provides the HTTP handlers of the planner bot.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ivandudin29/tg-notes-bot/internal/service"
)

// Version is reported by /health.
const Version = "0.1.0"

// ConnectionCounter reports how many chat clients are connected.
type ConnectionCounter interface {
	ConnectionCount() int
	UserCount() int
}

// Handler handles HTTP requests.
type Handler struct {
	service     *service.Service
	connections ConnectionCounter
}

// NewHandler creates a new handler. connections may be nil.
func NewHandler(svc *service.Service, connections ConnectionCounter) *Handler {
	return &Handler{
		service:     svc,
		connections: connections,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Chat transport webhook
	e.POST("/v1/updates", h.PostUpdate)

	// Read API
	e.GET("/v1/users/:user_id/projects", h.ListProjects)
	e.GET("/v1/users/:user_id/projects/:project_id/tasks", h.ListProjectTasks)

	e.GET("/health", h.Health)
	e.GET("/", h.Index)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	connections, users := 0, 0
	if h.connections != nil {
		connections = h.connections.ConnectionCount()
		users = h.connections.UserCount()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"version":     Version,
		"connections": connections,
		"users":       users,
	})
}

// Index returns the service banner.
func (h *Handler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "planbot",
		"version": Version,
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
