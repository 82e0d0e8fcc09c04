package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	ErrInvalidJSON     = errors.New("board: response is not valid JSON")
	ErrParse           = errors.New("board: response is not a JSON board")
	ErrUnknownColumn   = errors.New("board: task references an undeclared column")
	ErrDuplicateColumn = errors.New("board: duplicate column id")
)

// Decode accepts any valid JSON document. When the document does not describe
// a board the result is nil with a nil error, and renders as the empty view.
// Only text that is not JSON fails, with ErrInvalidJSON.
func Decode(raw string) (*Board, error) {
	if !sonic.ValidString(raw) {
		return nil, ErrInvalidJSON
	}
	b, err := Parse(raw)
	if err != nil {
		return nil, nil
	}
	return b, nil
}

// Parse decodes raw model output. Anything that is not a JSON object carrying
// board-typed columns or tasks is a parse failure. Problems inside a
// well-typed board are left to Validate.
func Parse(raw string) (*Board, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrParse
	}
	var b Board
	if err := sonic.ConfigStd.UnmarshalFromString(trimmed, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if b.Columns == nil && b.Tasks == nil {
		return nil, fmt.Errorf("%w: no columns or tasks", ErrParse)
	}
	return &b, nil
}

// Validate reports duplicate column ids and tasks whose column is not
// declared. A nil error means every task renders under its column.
func Validate(b *Board) error {
	if b == nil {
		return nil
	}
	var errs []error
	declared := make(map[ID]bool, len(b.Columns))
	for _, c := range b.Columns {
		if declared[c.ID] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.ID))
		}
		declared[c.ID] = true
	}
	for _, t := range b.Tasks {
		if !declared[t.ColumnID] {
			errs = append(errs, fmt.Errorf("%w: task %q -> %q", ErrUnknownColumn, t.ID, t.ColumnID))
		}
	}
	return errors.Join(errs...)
}
