package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the wire value stored on a task. It is only meaningful at the
// persistence boundary; engine logic works on Location.
type Status string

const (
	StatusBacklog              Status = "Backlog"
	StatusSpecificationActive  Status = "Specification Active"
	StatusSpecificationDone    Status = "Specification Done"
	StatusImplementationActive Status = "Implementation Active"
	StatusImplementationDone   Status = "Implementation Done"
	StatusTest                 Status = "Test"
	StatusDone                 Status = "Done"
)

var statuses = []Status{
	StatusBacklog,
	StatusSpecificationActive,
	StatusSpecificationDone,
	StatusImplementationActive,
	StatusImplementationDone,
	StatusTest,
	StatusDone,
}

// Statuses returns the closed set of status values in board order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is one of the fixed status values.
func (s Status) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Subsection is one of the two fixed sub-buckets of a subsectioned column.
type Subsection string

const (
	SubsectionNone   Subsection = ""
	SubsectionActive Subsection = "active"
	SubsectionDone   Subsection = "done"
)

func (s Subsection) valid() bool {
	return s == SubsectionActive || s == SubsectionDone
}

// BacklogColumn is where tasks with an unrecognised status end up.
const BacklogColumn = "backlog"

// Location is the decoded form of a status: a column and, for subsectioned
// columns, the sub-bucket inside it.
type Location struct {
	Column     string     `json:"column"`
	Subsection Subsection `json:"subsection,omitempty"`
}

func (l Location) String() string {
	if l.Subsection == SubsectionNone {
		return l.Column
	}
	return l.Column + "-" + string(l.Subsection)
}

// Codec maps status strings to locations for one column schema.
type Codec struct {
	columns map[string]Column
}

func NewCodec(columns []Column) *Codec {
	m := make(map[string]Column, len(columns))
	for _, c := range columns {
		m[c.ID] = c
	}
	return &Codec{columns: m}
}

// Decode resolves a status against the schema. Anything that does not name
// a known column falls back to the backlog.
func (c *Codec) Decode(status Status) Location {
	s := strings.TrimSpace(string(status))

	if head, tail, ok := strings.Cut(s, " "); ok {
		id := strings.ToLower(head)
		sub := Subsection(strings.ToLower(strings.TrimSpace(tail)))
		if col, known := c.columns[id]; known && col.Kind() == SubsectionedColumn && sub.valid() {
			return Location{Column: id, Subsection: sub}
		}
	}

	id := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	col, known := c.columns[id]
	if !known {
		return Location{Column: BacklogColumn}
	}
	if col.Kind() == SubsectionedColumn {
		return Location{Column: id, Subsection: SubsectionActive}
	}
	return Location{Column: id}
}

// Encode is the inverse of Decode for locations reachable from the fixed
// status set.
func Encode(loc Location) Status {
	title := cases.Title(language.English)
	out := title.String(loc.Column)
	if loc.Subsection != SubsectionNone {
		out += " " + title.String(string(loc.Subsection))
	}
	return Status(out)
}
