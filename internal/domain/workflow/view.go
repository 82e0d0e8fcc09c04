package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medrecords/internal/domain/board"
	"github.com/ehr/medrecords/pkg/routes"
)

var (
	ErrClosed = errors.New("view is closed")
	ErrNoFile = errors.New("no file selected")
)

// Notifier shows a blocking alert to the user.
type Notifier interface {
	Alert(message string)
}

// Navigator moves the user to path, carrying state for the destination.
type Navigator interface {
	Navigate(path string, state any)
}

// Flows is satisfied by *Service.
type Flows interface {
	AnalyzeReport(ctx context.Context, recordID uuid.UUID, a Artifact) (string, error)
	GenerateBoard(ctx context.Context, recordID uuid.UUID, narrative string) (*board.Board, string, error)
}

// ViewState is the observable state of one record detail view.
type ViewState struct {
	ModalOpen      bool   `json:"modal_open"`
	Uploading      bool   `json:"uploading"`
	UploadSuccess  bool   `json:"upload_success"`
	Processing     bool   `json:"processing"`
	FileName       string `json:"file_name"`
	FileType       string `json:"file_type"`
	HasFile        bool   `json:"has_file"`
	AnalysisResult string `json:"analysis_result"`
}

// View drives one opened record: file selection, report upload and board
// generation. Uploading and Processing are independent; each allows one
// call in flight. Close cancels in-flight calls and waits for them; their
// results are then discarded without touching state or navigating.
type View struct {
	recordID uuid.UUID
	flows    Flows
	notify   Notifier
	nav      Navigator
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	state  ViewState
	file   *Artifact
}

// NewView opens a view on a record, seeded with its stored analysis.
func NewView(ctx context.Context, recordID uuid.UUID, analysisResult string, flows Flows, notify Notifier, nav Navigator, logger zerolog.Logger) *View {
	vctx, cancel := context.WithCancel(ctx)
	return &View{
		recordID: recordID,
		flows:    flows,
		notify:   notify,
		nav:      nav,
		logger:   logger.With().Str("record_id", recordID.String()).Logger(),
		ctx:      vctx,
		cancel:   cancel,
		state:    ViewState{AnalysisResult: analysisResult},
	}
}

func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) OpenModal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.state.ModalOpen = true
	}
}

func (v *View) CloseModal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.state.ModalOpen = false
	}
}

// SelectFile stages a file for upload. A non-image is rejected with an alert
// and leaves the staged file untouched.
func (v *View) SelectFile(name, mediaType string, data []byte) error {
	a, err := NewArtifact(name, mediaType, data)
	if err != nil {
		v.notify.Alert(MsgNotImage)
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.file = &a
	v.state.FileName = a.FileName
	v.state.FileType = a.MediaType
	v.state.HasFile = true
	return nil
}

// begin marks an operation in flight. flag is the state bit guarding it.
func (v *View) begin(flag *bool) error {
	if v.closed {
		return ErrClosed
	}
	if *flag {
		return ErrBusy
	}
	*flag = true
	v.wg.Add(1)
	return nil
}

// Upload analyzes the staged file. On success the modal closes, the staged
// file is cleared and UploadSuccess is set; Uploading is cleared either way.
func (v *View) Upload() error {
	v.mu.Lock()
	if v.file == nil && !v.closed {
		v.mu.Unlock()
		v.notify.Alert(MsgUploadFailed)
		return ErrNoFile
	}
	if err := v.begin(&v.state.Uploading); err != nil {
		v.mu.Unlock()
		return err
	}
	v.state.UploadSuccess = false
	art := *v.file
	v.mu.Unlock()
	defer v.wg.Done()

	text, err := v.flows.AnalyzeReport(v.ctx, v.recordID, art)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.state.Uploading = false
	if err == nil {
		v.state.AnalysisResult = text
		v.state.UploadSuccess = true
		v.state.ModalOpen = false
		v.file = nil
		v.state.FileName = ""
		v.state.FileType = ""
		v.state.HasFile = false
	}
	v.mu.Unlock()

	if err != nil {
		v.logger.Error().Err(err).Msg("upload failed")
		v.notify.Alert(MsgUploadFailed)
		return err
	}
	return nil
}

// GenerateBoard builds a board from the current analysis and navigates to
// it exactly once on success. A parse failure alerts and neither persists
// nor navigates.
func (v *View) GenerateBoard() error {
	v.mu.Lock()
	if err := v.begin(&v.state.Processing); err != nil {
		v.mu.Unlock()
		return err
	}
	narrative := v.state.AnalysisResult
	v.mu.Unlock()
	defer v.wg.Done()

	b, _, err := v.flows.GenerateBoard(v.ctx, v.recordID, narrative)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.state.Processing = false
	v.mu.Unlock()

	switch {
	case errors.Is(err, ErrBoardParse):
		v.logger.Warn().Err(err).Msg("board response did not parse")
		v.notify.Alert(MsgBoardParse)
		return err
	case err != nil:
		v.logger.Error().Err(err).Msg("board generation failed")
		v.notify.Alert(MsgBoardFailed)
		return err
	}

	v.nav.Navigate(routes.Board(v.recordID.String()), b)
	return nil
}

// Close tears the view down. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.cancel()
	v.wg.Wait()
}
