package records

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockRecordRepo struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*Record
	updates []RecordUpdate
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{items: make(map[uuid.UUID]*Record)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecordRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Record
	for _, r := range m.items {
		if r.UserID == userID {
			cp := *r
			result = append(result, &cp)
		}
	}
	total := len(result)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockRecordRepo) Update(_ context.Context, u RecordUpdate) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[u.ID]
	if !ok {
		return nil, ErrNotFound
	}
	m.updates = append(m.updates, u)
	updated := u.Apply(*r)
	m.items[u.ID] = &updated
	cp := updated
	return &cp, nil
}

func newTestService() (*Service, *mockRecordRepo) {
	repo := newMockRecordRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func strPtr(s string) *string { return &s }

var testOwner = Owner{UserID: uuid.MustParse("8f14e45f-ceea-467f-a0e6-5c3f2b1d9a10"), Email: "patient@example.com"}

// -- Tests --

func TestService_CreateRecord(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.CreateRecord(context.Background(), testOwner, "  Oncology 2024 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.RecordName != "Oncology 2024" {
		t.Errorf("expected trimmed name, got %q", rec.RecordName)
	}
	if rec.UserID != testOwner.UserID || rec.CreatedBy != testOwner.Email {
		t.Errorf("expected owner fields set, got %+v", rec)
	}
	if rec.AnalysisResult != "" || rec.KanbanRecords != "" {
		t.Error("expected a new record to start without analysis or board")
	}
}

func TestService_CreateRecord_NameRequired(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.CreateRecord(context.Background(), testOwner, "   "); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestService_UpdateRecord_PartialSemantics(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rec, _ := svc.CreateRecord(ctx, testOwner, "Cardiology")

	if _, err := svc.UpdateRecord(ctx, RecordUpdate{ID: rec.ID, AnalysisResult: strPtr("narrative"), KanbanRecords: strPtr(`{"columns":[]}`)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Board only: analysis must survive.
	got, err := svc.UpdateRecord(ctx, RecordUpdate{ID: rec.ID, KanbanRecords: strPtr(`{"tasks":[]}`)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.AnalysisResult != "narrative" {
		t.Errorf("expected analysis preserved, got %q", got.AnalysisResult)
	}
	if got.KanbanRecords != `{"tasks":[]}` {
		t.Errorf("expected board overwritten, got %q", got.KanbanRecords)
	}

	// Explicit empty string clears.
	got, err = svc.UpdateRecord(ctx, RecordUpdate{ID: rec.ID, AnalysisResult: strPtr("second"), KanbanRecords: strPtr("")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.KanbanRecords != "" {
		t.Errorf("expected board cleared, got %q", got.KanbanRecords)
	}
	if got.AnalysisResult != "second" {
		t.Errorf("expected analysis overwritten, got %q", got.AnalysisResult)
	}
}

func TestService_UpdateRecord_Errors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.UpdateRecord(ctx, RecordUpdate{ID: uuid.New()}); !errors.Is(err, ErrEmptyUpdate) {
		t.Errorf("expected ErrEmptyUpdate, got %v", err)
	}
	if _, err := svc.UpdateRecord(ctx, RecordUpdate{ID: uuid.New(), AnalysisResult: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_GetOwnedRecord(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rec, _ := svc.CreateRecord(ctx, testOwner, "Mine")

	if _, err := svc.GetOwnedRecord(ctx, testOwner.UserID, rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetOwnedRecord(ctx, uuid.New(), rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a foreign record, got %v", err)
	}
}

func TestService_Boards(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	withBoard, _ := svc.CreateRecord(ctx, testOwner, "a")
	broken, _ := svc.CreateRecord(ctx, testOwner, "b")
	_, _ = svc.CreateRecord(ctx, testOwner, "c")
	_, _ = svc.UpdateRecord(ctx, RecordUpdate{ID: withBoard.ID, KanbanRecords: strPtr(`{"columns":[{"id":"todo","title":"Todo"}],"tasks":[{"id":"1","columnId":"todo","content":"x"}]}`)})
	_, _ = svc.UpdateRecord(ctx, RecordUpdate{ID: broken.ID, KanbanRecords: strPtr("not json")})

	boards, err := svc.Boards(ctx, testOwner.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(boards) != 1 {
		t.Fatalf("expected 1 board, got %d", len(boards))
	}
	if len(boards[0].Tasks) != 1 {
		t.Errorf("expected 1 task, got %d", len(boards[0].Tasks))
	}
}
