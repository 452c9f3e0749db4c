package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/service"
)

// PostUpdate handles one chat update and returns the reply to render.
// POST /v1/updates
func (h *Handler) PostUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.Update
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" && req.Action == "" {
		return errorJSON(c, http.StatusBadRequest, "text or action is required")
	}

	reply, err := h.service.HandleUpdate(ctx, req)
	if errors.Is(err, domain.ErrInvalidInput) {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		log.Printf("ERROR: update for user %s failed: %v", req.UserID, err)
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, reply)
}
