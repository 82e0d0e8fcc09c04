package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medrecords/internal/platform/auth"
)

type fakeOwners struct {
	owners map[string]Owner
}

func (f fakeOwners) ResolveOwner(_ context.Context, email string) (Owner, error) {
	o, ok := f.owners[email]
	if !ok {
		return Owner{}, ErrNoOwner
	}
	return o, nil
}

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	h := NewHandler(svc, fakeOwners{owners: map[string]Owner{testOwner.Email: testOwner}})
	return h, echo.New()
}

func sessionRequest(method, target, body, email string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	sess := auth.Session{Ready: true, Authenticated: true, User: &auth.User{ID: "did:privy:1", Email: email}}
	return req.WithContext(auth.WithSession(req.Context(), sess))
}

func TestHandler_CreateRecord(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(sessionRequest(http.MethodPost, "/", `{"record_name":"Oncology"}`, testOwner.Email), rec)

	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RecordName != "Oncology" {
		t.Errorf("unexpected record name %q", got.RecordName)
	}
}

func TestHandler_CreateRecord_NotOnboarded(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(sessionRequest(http.MethodPost, "/", `{"record_name":"x"}`, "stranger@example.com"), httptest.NewRecorder())

	err := h.CreateRecord(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestHandler_GetRecord_Foreign(t *testing.T) {
	h, e := newTestHandler()
	other, _ := h.svc.CreateRecord(context.Background(), Owner{UserID: uuid.New(), Email: "other@example.com"}, "theirs")

	c := e.NewContext(sessionRequest(http.MethodGet, "/", "", testOwner.Email), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(other.ID.String())

	err := h.GetRecord(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_GetRecord_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(sessionRequest(http.MethodGet, "/", "", testOwner.Email), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetRecord(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_PatchRecord(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()
	r, _ := h.svc.CreateRecord(ctx, testOwner, "Cardiology")
	_, _ = h.svc.UpdateRecord(ctx, RecordUpdate{ID: r.ID, AnalysisResult: strPtr("keep me")})

	rec := httptest.NewRecorder()
	c := e.NewContext(sessionRequest(http.MethodPatch, "/", `{"kanban_records":"{\"columns\":[],\"tasks\":[]}"}`, testOwner.Email), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.PatchRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.AnalysisResult != "keep me" {
		t.Errorf("expected analysis preserved, got %q", got.AnalysisResult)
	}
	if got.KanbanRecords == "" {
		t.Error("expected board stored")
	}
}

func TestHandler_PatchRecord_RejectsInvalidJSON(t *testing.T) {
	h, e := newTestHandler()
	r, _ := h.svc.CreateRecord(context.Background(), testOwner, "Cardiology")

	c := e.NewContext(sessionRequest(http.MethodPatch, "/", `{"kanban_records":"nope"}`, testOwner.Email), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	err := h.PatchRecord(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_PatchRecord_AcceptsNonBoardJSON(t *testing.T) {
	h, e := newTestHandler()
	r, _ := h.svc.CreateRecord(context.Background(), testOwner, "Cardiology")

	c := e.NewContext(sessionRequest(http.MethodPatch, "/", `{"kanban_records":"{\"plan\":\"rest\"}"}`, testOwner.Email), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.PatchRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := h.svc.GetRecord(context.Background(), r.ID)
	if stored.KanbanRecords != `{"plan":"rest"}` {
		t.Errorf("unexpected stored board %q", stored.KanbanRecords)
	}
}

func TestHandler_ListRecords(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()
	_, _ = h.svc.CreateRecord(ctx, testOwner, "a")
	_, _ = h.svc.CreateRecord(ctx, testOwner, "b")
	_, _ = h.svc.CreateRecord(ctx, Owner{UserID: uuid.New()}, "not mine")

	rec := httptest.NewRecorder()
	c := e.NewContext(sessionRequest(http.MethodGet, "/?limit=10", "", testOwner.Email), rec)
	if err := h.ListRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []Record `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Data) != 2 {
		t.Errorf("expected 2 owned records, got total=%d len=%d", body.Total, len(body.Data))
	}
}
