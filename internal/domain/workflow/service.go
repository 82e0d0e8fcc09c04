package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medrecords/internal/domain/board"
	"github.com/ehr/medrecords/internal/domain/records"
	"github.com/ehr/medrecords/internal/platform/analysis"
)

var (
	ErrBusy       = errors.New("operation already in progress for this record")
	ErrBoardParse = errors.New("treatment plan response is not a board")
	ErrNoAnalysis = errors.New("record has no analysis to plan from")
)

// Store is the slice of the record store the flows write through.
type Store interface {
	UpdateRecord(ctx context.Context, u records.RecordUpdate) (*records.Record, error)
}

// Service runs the two model-backed flows. Each flow makes a single model
// call and at most one store write, and never writes after a failure.
type Service struct {
	store   Store
	client  analysis.Client
	timeout time.Duration
	logger  zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(store Store, client analysis.Client, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		client:   client,
		timeout:  timeout,
		logger:   logger.With().Str("component", "workflow").Logger(),
		inflight: make(map[string]struct{}),
	}
}

func (s *Service) acquire(op string, id uuid.UUID) (release func(), ok bool) {
	key := op + ":" + id.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, false
	}
	s.inflight[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, true
}

func (s *Service) modelContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// AnalyzeReport turns the report image into a narrative and stores it on the
// record together with an explicitly cleared board.
func (s *Service) AnalyzeReport(ctx context.Context, recordID uuid.UUID, a Artifact) (string, error) {
	if !IsImage(a.MediaType) {
		return "", ErrNotImage
	}
	release, ok := s.acquire("report", recordID)
	if !ok {
		return "", ErrBusy
	}
	defer release()

	log := s.logger.With().Str("record_id", recordID.String()).Logger()

	mctx, cancel := s.modelContext(ctx)
	text, err := s.client.AnalyzeReport(mctx, a.Data, a.MediaType)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("file_name", a.FileName).Msg("report analysis failed")
		return "", fmt.Errorf("analyze report: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cleared := ""
	if _, err := s.store.UpdateRecord(ctx, records.RecordUpdate{ID: recordID, AnalysisResult: &text, KanbanRecords: &cleared}); err != nil {
		log.Error().Err(err).Msg("persist analysis failed")
		return "", fmt.Errorf("persist analysis: %w", err)
	}
	log.Info().Int("narrative_len", len(text)).Msg("report analyzed")
	return text, nil
}

// GenerateBoard asks the model for a board and stores the raw response
// whenever it is valid JSON. The returned board is nil when that JSON is not
// board-shaped. Text that is not JSON returns an error wrapping ErrBoardParse
// and nothing is stored.
func (s *Service) GenerateBoard(ctx context.Context, recordID uuid.UUID, narrative string) (*board.Board, string, error) {
	if strings.TrimSpace(narrative) == "" {
		return nil, "", ErrNoAnalysis
	}
	release, ok := s.acquire("board", recordID)
	if !ok {
		return nil, "", ErrBusy
	}
	defer release()

	log := s.logger.With().Str("record_id", recordID.String()).Logger()

	mctx, cancel := s.modelContext(ctx)
	raw, err := s.client.GenerateBoard(mctx, narrative)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("board generation failed")
		return nil, "", fmt.Errorf("generate board: %w", err)
	}

	b, err := board.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("board response did not parse")
		return nil, "", fmt.Errorf("%w: %v", ErrBoardParse, err)
	}
	if b == nil {
		log.Warn().Msg("board response is JSON but not a board")
	} else if err := board.Validate(b); err != nil {
		log.Warn().Err(err).Msg("board has integrity problems")
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	if _, err := s.store.UpdateRecord(ctx, records.RecordUpdate{ID: recordID, KanbanRecords: &raw}); err != nil {
		log.Error().Err(err).Msg("persist board failed")
		return nil, "", fmt.Errorf("persist board: %w", err)
	}
	tasks := 0
	if b != nil {
		tasks = len(b.Tasks)
	}
	log.Info().Int("tasks", tasks).Msg("board generated")
	return b, raw, nil
}
