// Package board models the Todo/Doing/Done task board derived from a
// treatment narrative.
package board

import (
	"bytes"
	"encoding/json"
)

// Canonical column identifiers.
const (
	ColumnTodo  = "todo"
	ColumnDoing = "doing"
	ColumnDone  = "done"
)

// ID accepts both JSON strings and numbers; models are not consistent about
// quoting task ids.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' && b[0] != 'n' {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = ID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

type Column struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

type Task struct {
	ID       ID     `json:"id"`
	ColumnID ID     `json:"columnId"`
	Content  string `json:"content"`
}

type Board struct {
	Columns []Column `json:"columns"`
	Tasks   []Task   `json:"tasks"`
}

// DefaultColumns returns the three canonical columns.
func DefaultColumns() []Column {
	return []Column{
		{ID: ColumnTodo, Title: "Todo"},
		{ID: ColumnDoing, Title: "Work in progress"},
		{ID: ColumnDone, Title: "Done"},
	}
}
