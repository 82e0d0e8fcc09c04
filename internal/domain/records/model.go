package records

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrNameRequired = errors.New("record_name is required")
	ErrEmptyUpdate  = errors.New("update carries no fields")
	ErrNoOwner      = errors.New("no directory profile for this session")
)

// Record is a named folder of one user's medical documents together with the
// latest analysis narrative and serialized board derived from them.
type Record struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	RecordName     string    `json:"record_name"`
	AnalysisResult string    `json:"analysis_result"`
	KanbanRecords  string    `json:"kanban_records"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecordUpdate is a partial update. A nil field keeps the stored value; a
// non-nil field overwrites it, including with "".
type RecordUpdate struct {
	ID             uuid.UUID
	AnalysisResult *string
	KanbanRecords  *string
}

func (u RecordUpdate) Empty() bool {
	return u.AnalysisResult == nil && u.KanbanRecords == nil
}

// Apply returns r with u's non-nil fields written over it.
func (u RecordUpdate) Apply(r Record) Record {
	if u.AnalysisResult != nil {
		r.AnalysisResult = *u.AnalysisResult
	}
	if u.KanbanRecords != nil {
		r.KanbanRecords = *u.KanbanRecords
	}
	return r
}

// Owner is the directory user a request acts for.
type Owner struct {
	UserID uuid.UUID
	Email  string
}
