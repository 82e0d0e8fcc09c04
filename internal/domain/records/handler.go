package records

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medrecords/internal/domain/board"
	"github.com/ehr/medrecords/internal/platform/auth"
	"github.com/ehr/medrecords/pkg/pagination"
)

// OwnerResolver maps a session email to its directory user.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, email string) (Owner, error)
}

// CurrentOwner resolves the directory user behind the request's session.
// Errors are echo HTTP errors ready to return from a handler.
func CurrentOwner(c echo.Context, owners OwnerResolver) (Owner, error) {
	ctx := c.Request().Context()
	email := auth.SessionFromContext(ctx).Email()
	if email == "" {
		return Owner{}, echo.NewHTTPError(http.StatusForbidden, "session has no email address")
	}
	o, err := owners.ResolveOwner(ctx, email)
	if errors.Is(err, ErrNoOwner) {
		return Owner{}, echo.NewHTTPError(http.StatusForbidden, "complete onboarding first")
	}
	if err != nil {
		return Owner{}, echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve user")
	}
	return o, nil
}

// RecordParam parses the :id path parameter.
func RecordParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type Handler struct {
	svc    *Service
	owners OwnerResolver
}

func NewHandler(svc *Service, owners OwnerResolver) *Handler {
	return &Handler{svc: svc, owners: owners}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/records", auth.RequireSession())
	g.GET("", h.ListRecords)
	g.POST("", h.CreateRecord)
	g.GET("/:id", h.GetRecord)
	g.PATCH("/:id", h.PatchRecord)
}

type createRecordRequest struct {
	RecordName string `json:"record_name"`
}

// patchRecordRequest fields are pointers so an absent field is preserved.
type patchRecordRequest struct {
	AnalysisResult *string `json:"analysis_result"`
	KanbanRecords  *string `json:"kanban_records"`
}

func (h *Handler) CreateRecord(c echo.Context) error {
	owner, err := CurrentOwner(c, h.owners)
	if err != nil {
		return err
	}
	var req createRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), owner, req.RecordName)
	if errors.Is(err, ErrNameRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create record")
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	owner, err := CurrentOwner(c, h.owners)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), owner.UserID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list records")
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRecord(c echo.Context) error {
	owner, err := CurrentOwner(c, h.owners)
	if err != nil {
		return err
	}
	id, err := RecordParam(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetOwnedRecord(c.Request().Context(), owner.UserID, id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load record")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) PatchRecord(c echo.Context) error {
	owner, err := CurrentOwner(c, h.owners)
	if err != nil {
		return err
	}
	id, err := RecordParam(c)
	if err != nil {
		return err
	}
	var req patchRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.KanbanRecords != nil && *req.KanbanRecords != "" {
		if _, err := board.Decode(*req.KanbanRecords); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "kanban_records is not valid JSON")
		}
	}

	ctx := c.Request().Context()
	if _, err := h.svc.GetOwnedRecord(ctx, owner.UserID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load record")
	}

	rec, err := h.svc.UpdateRecord(ctx, RecordUpdate{ID: id, AnalysisResult: req.AnalysisResult, KanbanRecords: req.KanbanRecords})
	switch {
	case errors.Is(err, ErrEmptyUpdate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update record")
	}
	return c.JSON(http.StatusOK, rec)
}
