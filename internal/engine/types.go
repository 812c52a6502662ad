package engine

// ColumnKind tags the two bucket shapes a column can have.
type ColumnKind int

const (
	FlatColumn ColumnKind = iota
	SubsectionedColumn
)

// Column is the board-scoped column configuration as exchanged with the
// server of record.
type Column struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	HasSubsections bool    `json:"hasSubsections"`
	AllowWipLimit  bool    `json:"allowWipLimit"`
	WipLimit       *int    `json:"wipLimit"`
	DoneRule       *string `json:"doneRule"`
}

func (c Column) Kind() ColumnKind {
	if c.HasSubsections {
		return SubsectionedColumn
	}
	return FlatColumn
}

// Limit returns the enforced WIP limit. ok is false when the column is
// unlimited.
func (c Column) Limit() (limit int, ok bool) {
	if !c.AllowWipLimit || c.WipLimit == nil {
		return 0, false
	}
	return *c.WipLimit, true
}

// Task is a single card on the board.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      Status  `json:"status"`
	Color       *string `json:"color"`
	AssignedTo  *string `json:"assignedTo"`
}

// Snapshot is a full board as served by the server of record.
type Snapshot struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Code    string   `json:"code"`
	Columns []Column `json:"columns"`
	Tasks   []Task   `json:"tasks"`
}

// ColumnSettings is the mutable part of a column.
type ColumnSettings struct {
	WipLimit *int    `json:"wipLimit"`
	DoneRule *string `json:"doneRule"`
}

// NewTask is the payload for creating a task. Status is always Backlog.
type NewTask struct {
	Title  string  `json:"title"`
	Status Status  `json:"status"`
	Color  *string `json:"color"`
}

// TaskUpdate carries a status change and/or detail edits. Nil fields are
// left untouched.
type TaskUpdate struct {
	Status      *Status `json:"status,omitempty"`
	Position    *int    `json:"position,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	AssignedTo  *string `json:"assignedTo,omitempty"`
}

// DefaultColumns is the column set every new board starts with.
func DefaultColumns() []Column {
	return []Column{
		{ID: "backlog", Title: "Backlog"},
		{ID: "specification", Title: "Specification", HasSubsections: true, AllowWipLimit: true},
		{ID: "implementation", Title: "Implementation", HasSubsections: true, AllowWipLimit: true},
		{ID: "test", Title: "Test", AllowWipLimit: true},
		{ID: "done", Title: "Done"},
	}
}

func cloneTask(t Task) Task {
	t.Description = cloneString(t.Description)
	t.Color = cloneString(t.Color)
	t.AssignedTo = cloneString(t.AssignedTo)
	return t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
