package workflow

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/medrecords/internal/domain/board"
	"github.com/ehr/medrecords/internal/domain/records"
	"github.com/ehr/medrecords/internal/platform/auth"
	"github.com/ehr/medrecords/pkg/routes"
)

type Handler struct {
	svc       *Service
	records   *records.Service
	owners    records.OwnerResolver
	maxUpload int64
}

func NewHandler(svc *Service, recs *records.Service, owners records.OwnerResolver, maxUpload int64) *Handler {
	return &Handler{svc: svc, records: recs, owners: owners, maxUpload: maxUpload}
}

// RegisterRoutes mounts the flows. modelLimit guards the two routes that
// call the model.
func (h *Handler) RegisterRoutes(api *echo.Group, modelLimit echo.MiddlewareFunc) {
	g := api.Group("", auth.RequireSession())
	g.GET("/records/:id/board", h.GetBoard)
	g.GET("/dashboard", h.Dashboard)

	model := g.Group("")
	if modelLimit != nil {
		model.Use(modelLimit)
	}
	model.POST("/records/:id/report", h.UploadReport)
	model.POST("/records/:id/board", h.GenerateBoard)
}

type reportResponse struct {
	RecordID       string `json:"record_id"`
	AnalysisResult string `json:"analysis_result"`
	KanbanRecords  string `json:"kanban_records"`
}

type boardResponse struct {
	RecordID string       `json:"record_id"`
	Location string       `json:"location"`
	Board    *board.Board `json:"board,omitempty"`
	View     board.View   `json:"view"`
	Problems []string     `json:"problems,omitempty"`
}

func (h *Handler) ownedRecord(c echo.Context) (*records.Record, error) {
	owner, err := records.CurrentOwner(c, h.owners)
	if err != nil {
		return nil, err
	}
	id, err := records.RecordParam(c)
	if err != nil {
		return nil, err
	}
	rec, err := h.records.GetOwnedRecord(c.Request().Context(), owner.UserID, id)
	if errors.Is(err, records.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load record")
	}
	return rec, nil
}

// UploadReport accepts a multipart "file" image and stores its analysis.
func (h *Handler) UploadReport(c echo.Context) error {
	rec, err := h.ownedRecord(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, MsgNotImage)
	}
	art, err := ReadArtifact(fh, h.maxUpload)
	switch {
	case errors.Is(err, ErrNotImage), errors.Is(err, ErrEmptyFile):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, MsgNotImage)
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, MsgUploadFailed)
	}

	text, err := h.svc.AnalyzeReport(c.Request().Context(), rec.ID, art)
	if errors.Is(err, ErrBusy) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, MsgUploadFailed)
	}
	return c.JSON(http.StatusOK, reportResponse{RecordID: rec.ID.String(), AnalysisResult: text})
}

// GenerateBoard plans from the record's stored analysis.
func (h *Handler) GenerateBoard(c echo.Context) error {
	rec, err := h.ownedRecord(c)
	if err != nil {
		return err
	}
	b, raw, err := h.svc.GenerateBoard(c.Request().Context(), rec.ID, rec.AnalysisResult)
	switch {
	case errors.Is(err, ErrNoAnalysis):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrBoardParse):
		return echo.NewHTTPError(http.StatusBadGateway, MsgBoardParse)
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, MsgBoardFailed)
	}
	return c.JSON(http.StatusOK, newBoardResponse(rec.ID.String(), raw, b))
}

// GetBoard renders the stored board. A record without a usable board gets
// the empty view rather than an error.
func (h *Handler) GetBoard(c echo.Context) error {
	rec, err := h.ownedRecord(c)
	if err != nil {
		return err
	}
	var b *board.Board
	if rec.KanbanRecords != "" {
		b, _ = board.Decode(rec.KanbanRecords)
	}
	return c.JSON(http.StatusOK, newBoardResponse(rec.ID.String(), rec.KanbanRecords, b))
}

func (h *Handler) Dashboard(c echo.Context) error {
	owner, err := records.CurrentOwner(c, h.owners)
	if err != nil {
		return err
	}
	boards, err := h.records.Boards(c.Request().Context(), owner.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load boards")
	}
	return c.JSON(http.StatusOK, board.Summarize(boards))
}

// problemNotBoard is reported when a stored plan exists but is not board-shaped.
const problemNotBoard = "board: stored plan is not in board format"

func newBoardResponse(recordID, raw string, b *board.Board) boardResponse {
	resp := boardResponse{
		RecordID: recordID,
		Location: routes.Board(recordID),
		Board:    b,
		View:     board.Render(b),
	}
	if b == nil && strings.TrimSpace(raw) != "" {
		resp.Problems = []string{problemNotBoard}
	}
	if err := board.Validate(b); err != nil {
		resp.Problems = strings.Split(err.Error(), "\n")
	}
	return resp
}
