package directory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/medrecords/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/users", auth.RequireSession())
	g.GET("/exists", h.CheckExists)
	g.GET("/me", h.GetMe)
	g.POST("", h.Onboard)
}

type existsResponse struct {
	Exists bool  `json:"exists"`
	User   *User `json:"user,omitempty"`
}

// CheckExists answers only for the caller's own email.
func (h *Handler) CheckExists(c echo.Context) error {
	own := auth.SessionFromContext(c.Request().Context()).Email()
	email := c.QueryParam("email")
	if email == "" {
		email = own
	}
	if own == "" || NormalizeEmail(email) != NormalizeEmail(own) {
		return echo.NewHTTPError(http.StatusForbidden, "email does not match session")
	}
	u, err := h.svc.CheckIfUserExists(c.Request().Context(), email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user")
	}
	return c.JSON(http.StatusOK, existsResponse{Exists: u != nil, User: u})
}

func (h *Handler) GetMe(c echo.Context) error {
	email := auth.SessionFromContext(c.Request().Context()).Email()
	if email == "" {
		return echo.NewHTTPError(http.StatusForbidden, "session has no email address")
	}
	u, err := h.svc.CheckIfUserExists(c.Request().Context(), email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user")
	}
	if u == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Onboard(c echo.Context) error {
	email := auth.SessionFromContext(c.Request().Context()).Email()
	if email == "" {
		return echo.NewHTTPError(http.StatusForbidden, "session has no email address")
	}
	var req OnboardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Onboard(c.Request().Context(), email, req)
	switch {
	case errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrInvalidAge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}
	return c.JSON(http.StatusCreated, u)
}
