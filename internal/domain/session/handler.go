package session

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/medrecords/internal/platform/auth"
)

type Handler struct {
	ctrl *Controller
}

func NewHandler(ctrl *Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/session/redirect", h.Redirect)
}

// Redirect evaluates the caller's session. Unauthenticated callers are told
// to log in rather than rejected.
func (h *Handler) Redirect(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.ctrl.Evaluate(ctx, StateOf(auth.SessionFromContext(ctx)))
	if err != nil {
		h.ctrl.logger.Error().Err(err).Msg("session redirect lookup failed")
	}
	return c.JSON(http.StatusOK, d)
}
