// Package analysis wraps the multimodal model that turns report images into
// treatment narratives and narratives into task boards.
package analysis

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmptyImage    = errors.New("analysis: image is empty")
	ErrEmptyResponse = errors.New("analysis: model returned no text")
)

// Client is implemented by the direct model client and by the proxy client.
// Both make a single attempt per call.
type Client interface {
	// AnalyzeReport sends the report image with the fixed report instruction
	// and returns the narrative text.
	AnalyzeReport(ctx context.Context, image []byte, mimeType string) (string, error)
	// GenerateBoard sends the board prompt for narrative and returns the raw
	// model text, which is expected to be a JSON board.
	GenerateBoard(ctx context.Context, narrative string) (string, error)
}

func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
