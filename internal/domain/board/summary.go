package board

// Summary counts screenings across boards for the dashboard.
type Summary struct {
	Boards     int `json:"boards"`
	Total      int `json:"total_screenings"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
}

// Summarize counts tasks by canonical column. Tasks in other columns count
// toward Total only. Nil boards are skipped.
func Summarize(boards []*Board) Summary {
	var s Summary
	for _, b := range boards {
		if b == nil {
			continue
		}
		s.Boards++
		for _, t := range b.Tasks {
			s.Total++
			switch t.ColumnID {
			case ColumnDone:
				s.Completed++
			case ColumnDoing:
				s.InProgress++
			case ColumnTodo:
				s.Pending++
			}
		}
	}
	return s
}
