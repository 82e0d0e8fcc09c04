package board

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const chemoBoard = `{
  "columns": [
    { "id": "todo", "title": "Todo" },
    { "id": "doing", "title": "Work in progress" },
    { "id": "done", "title": "Done" }
  ],
  "tasks": [
    { "id": "1", "columnId": "todo", "content": "Initial consultation with oncologist" },
    { "id": "2", "columnId": "doing", "content": "Chemotherapy cycle 2" },
    { "id": "3", "columnId": "done", "content": "Blood test completed" },
    { "id": "4", "columnId": "todo", "content": "Follow-up CT scan" }
  ]
}`

func TestParse_ChemotherapyPlan(t *testing.T) {
	b, err := Parse(chemoBoard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(b); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	v := Render(b)
	if len(v.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(v.Columns))
	}
	want := []Task{
		{ID: "1", ColumnID: "todo", Content: "Initial consultation with oncologist"},
		{ID: "4", ColumnID: "todo", Content: "Follow-up CT scan"},
	}
	if diff := cmp.Diff(want, v.Columns[0].Tasks); diff != "" {
		t.Errorf("todo column mismatch (-want +got):\n%s", diff)
	}
	if v.Columns[1].Title != "Work in progress" {
		t.Errorf("expected second column title Work in progress, got %q", v.Columns[1].Title)
	}
	if v.Empty {
		t.Error("expected non-empty view")
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "Sure! Here is your plan: ..."},
		{"markdown fence", "```json\n{\"columns\":[]}\n```"},
		{"truncated", `{"columns":[{"id":"todo"`},
		{"array", `[{"id":"todo"}]`},
		{"string", `"columns"`},
		{"unrelated object", `{"plan":"rest"}`},
		{"columns wrong type", `{"columns":"todo,doing,done"}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.raw); !errors.Is(err, ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	b, err := Decode(chemoBoard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil || len(b.Tasks) != 4 {
		t.Fatalf("expected decoded chemotherapy board, got %+v", b)
	}

	for _, raw := range []string{`{"plan":"rest"}`, `[{"id":"todo"}]`, `{"columns":"todo,doing,done"}`, `"columns"`, `null`, ` 42 `} {
		b, err := Decode(raw)
		if err != nil {
			t.Errorf("%s: expected valid JSON to be accepted, got %v", raw, err)
		}
		if b != nil {
			t.Errorf("%s: expected no board, got %+v", raw, b)
		}
		if v := Render(b); !v.Empty {
			t.Errorf("%s: expected empty view", raw)
		}
	}

	for _, raw := range []string{"Sure! Here is your plan: ...", "```json\n{}\n```", `{"columns":[`, ""} {
		if _, err := Decode(raw); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("%q: expected ErrInvalidJSON, got %v", raw, err)
		}
	}
}

func TestParse_NumericIDs(t *testing.T) {
	b, err := Parse(`{"columns":[{"id":"todo","title":"Todo"}],"tasks":[{"id":7,"columnId":"todo","content":"x"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Tasks[0].ID != "7" {
		t.Errorf("expected id 7, got %q", b.Tasks[0].ID)
	}
}

func TestParse_EmptyBoard(t *testing.T) {
	b, err := Parse(`{"columns":[],"tasks":[]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := Render(b); !v.Empty {
		t.Error("expected empty view for a board with no columns or tasks")
	}
}

func TestValidate_Orphans(t *testing.T) {
	b := &Board{
		Columns: DefaultColumns(),
		Tasks: []Task{
			{ID: "1", ColumnID: "todo", Content: "a"},
			{ID: "2", ColumnID: "blocked", Content: "b"},
		},
	}
	if err := Validate(b); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}

	v := Render(b)
	if len(v.Orphans) != 1 || v.Orphans[0].ID != "2" {
		t.Fatalf("expected task 2 as orphan, got %+v", v.Orphans)
	}
	for _, c := range v.Columns {
		for _, task := range c.Tasks {
			if task.ID == "2" {
				t.Errorf("orphan task rendered under column %s", c.ID)
			}
		}
	}
}

func TestValidate_DuplicateColumn(t *testing.T) {
	b := &Board{Columns: append(DefaultColumns(), Column{ID: "todo", Title: "Again"})}
	if err := Validate(b); !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("expected ErrDuplicateColumn, got %v", err)
	}
	if v := Render(b); len(v.Columns) != 3 {
		t.Errorf("expected duplicate column collapsed, got %d columns", len(v.Columns))
	}
}

func TestRender_Nil(t *testing.T) {
	v := Render(nil)
	if !v.Empty {
		t.Error("expected empty view")
	}
	if v.Columns == nil {
		t.Error("expected non-nil columns slice")
	}
}

func TestRender_PreservesColumnOrder(t *testing.T) {
	b := &Board{Columns: []Column{
		{ID: "done", Title: "Done"},
		{ID: "todo", Title: "Todo"},
	}}
	got := []ID{}
	for _, c := range Render(b).Columns {
		got = append(got, c.ID)
	}
	if diff := cmp.Diff([]ID{"done", "todo"}, got); diff != "" {
		t.Errorf("column order mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	chemo, err := Parse(chemoBoard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	other := &Board{Columns: DefaultColumns(), Tasks: []Task{
		{ID: "1", ColumnID: "done", Content: "Mammogram"},
		{ID: "2", ColumnID: "elsewhere", Content: "?"},
	}}

	got := Summarize([]*Board{chemo, nil, other})
	want := Summary{Boards: 2, Total: 6, Completed: 2, InProgress: 1, Pending: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}
