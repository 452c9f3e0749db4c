package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// ListProjects lists a user's projects.
// GET /v1/users/:user_id/projects
func (h *Handler) ListProjects(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	projects, err := h.service.ListProjects(ctx, userID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if projects == nil {
		projects = []domain.Project{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"projects": projects,
	})
}

// ListProjectTasks lists the tasks of one of the user's projects.
// GET /v1/users/:user_id/projects/:project_id/tasks
func (h *Handler) ListProjectTasks(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		return errorJSON(c, http.StatusBadRequest, "invalid project_id")
	}

	tasks, err := h.service.ListProjectTasks(ctx, projectID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "project not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"tasks":      tasks,
	})
}
