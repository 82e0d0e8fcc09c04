package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) Repository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `id, user_id, record_name, analysis_result, kanban_records,
	created_by, created_at, updated_at`

func (r *recordRepoPG) scanRow(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.RecordName, &rec.AnalysisResult, &rec.KanbanRecords,
		&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO records (id, user_id, record_name, analysis_result, kanban_records, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		rec.ID, rec.UserID, rec.RecordName, rec.AnalysisResult, rec.KanbanRecords, rec.CreatedBy,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+recordCols+` FROM records WHERE id = $1`, id))
}

func (r *recordRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+recordCols+` FROM records WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// updateRecordSQL leaves a column untouched when its parameter is NULL. An
// empty string is not NULL and overwrites.
const updateRecordSQL = `
	UPDATE records SET
		analysis_result = COALESCE($2::text, analysis_result),
		kanban_records  = COALESCE($3::text, kanban_records),
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + recordCols

// updateArgs passes nil fields through as nil pointers, which pgx sends as NULL.
func updateArgs(u RecordUpdate) []any {
	return []any{u.ID, u.AnalysisResult, u.KanbanRecords}
}

func (r *recordRepoPG) Update(ctx context.Context, u RecordUpdate) (*Record, error) {
	return r.scanRow(r.pool.QueryRow(ctx, updateRecordSQL, updateArgs(u)...))
}
