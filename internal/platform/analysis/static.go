package analysis

import "context"

// Static returns canned responses. It backs ANALYSIS_MODE=static for local
// development without model credentials.
type Static struct {
	Narrative string
	Board     string
}

// NewStatic returns a Static client that answers with a fixed narrative and
// the example board.
func NewStatic() *Static {
	return &Static{
		Narrative: "Your report suggests starting with a consultation with an oncologist, followed by scheduled radiation therapy and routine blood tests.",
		Board:     BoardExample,
	}
}

func (s *Static) AnalyzeReport(_ context.Context, image []byte, _ string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	return nonEmpty(s.Narrative)
}

func (s *Static) GenerateBoard(_ context.Context, _ string) (string, error) {
	return nonEmpty(s.Board)
}
