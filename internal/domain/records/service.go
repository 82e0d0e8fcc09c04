package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medrecords/internal/domain/board"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "records").Logger()}
}

func (s *Service) CreateRecord(ctx context.Context, owner Owner, name string) (*Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	rec := &Record{UserID: owner.UserID, RecordName: name, CreatedBy: owner.Email}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// GetOwnedRecord hides records of other users behind ErrNotFound.
func (s *Service) GetOwnedRecord(ctx context.Context, userID, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *Service) ListRecords(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateRecord writes the non-nil fields of u in one store write.
func (s *Service) UpdateRecord(ctx context.Context, u RecordUpdate) (*Record, error) {
	if u.Empty() {
		return nil, ErrEmptyUpdate
	}
	rec, err := s.repo.Update(ctx, u)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error().Err(err).Str("record_id", u.ID.String()).Msg("record update failed")
		}
		return nil, err
	}
	s.logger.Debug().
		Str("record_id", u.ID.String()).
		Bool("analysis", u.AnalysisResult != nil).
		Bool("board", u.KanbanRecords != nil).
		Msg("record updated")
	return rec, nil
}

// Boards decodes the stored boards of a user's records, skipping records
// without a board or with one that no longer parses.
func (s *Service) Boards(ctx context.Context, userID uuid.UUID) ([]*board.Board, error) {
	const pageSize = 100
	var out []*board.Board
	for offset := 0; ; offset += pageSize {
		items, total, err := s.repo.ListByUser(ctx, userID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range items {
			if rec.KanbanRecords == "" {
				continue
			}
			b, err := board.Parse(rec.KanbanRecords)
			if err != nil {
				s.logger.Warn().Err(err).Str("record_id", rec.ID.String()).Msg("stored board does not parse")
				continue
			}
			out = append(out, b)
		}
		if len(items) == 0 || offset+pageSize >= total {
			return out, nil
		}
	}
}
