package board

// ColumnView is one rendered column with the tasks assigned to it.
type ColumnView struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// View is the read-only rendering of a board. Orphans holds tasks whose
// column is not declared; they are never moved into another column.
type View struct {
	Columns []ColumnView `json:"columns"`
	Orphans []Task       `json:"orphans,omitempty"`
	Empty   bool         `json:"empty"`
}

// Render lays tasks out under their columns, preserving declared column
// order and task input order. A nil board renders as an empty view.
func Render(b *Board) View {
	if b == nil {
		return View{Columns: []ColumnView{}, Empty: true}
	}

	v := View{Columns: make([]ColumnView, 0, len(b.Columns))}
	index := make(map[ID]int, len(b.Columns))
	for _, c := range b.Columns {
		if _, dup := index[c.ID]; dup {
			continue
		}
		index[c.ID] = len(v.Columns)
		v.Columns = append(v.Columns, ColumnView{ID: c.ID, Title: c.Title, Tasks: []Task{}})
	}

	for _, t := range b.Tasks {
		i, ok := index[t.ColumnID]
		if !ok {
			v.Orphans = append(v.Orphans, t)
			continue
		}
		v.Columns[i].Tasks = append(v.Columns[i].Tasks, t)
	}

	v.Empty = len(v.Columns) == 0 && len(b.Tasks) == 0
	return v
}
