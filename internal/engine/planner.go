package engine

// Reason explains why a move was not accepted.
type Reason string

const (
	ReasonWipLimitReached   Reason = "wip-limit-reached"
	ReasonUnknownColumn     Reason = "unknown-column"
	ReasonInvalidSubsection Reason = "invalid-subsection"
	ReasonTaskNotFound      Reason = "task-not-found"
)

// Position addresses a slot inside a bucket list.
type Position struct {
	Location
	Index int `json:"index"`
}

// Move is a decoded drag-and-drop request.
type Move struct {
	TaskID string   `json:"taskId"`
	From   Position `json:"from"`
	To     Position `json:"to"`
}

// Plan is the outcome of planning a move.
type Plan struct {
	Accepted  bool
	Reason    Reason
	TaskID    string
	From      Position
	To        Position
	NewStatus Status
}

// Noop reports whether an accepted plan leaves the board unchanged.
func (p Plan) Noop() bool {
	return p.Accepted && p.From == p.To
}

// CrossBucket reports whether the plan moves a task into a different list.
func (p Plan) CrossBucket() bool {
	return p.From.Location != p.To.Location
}

func reject(m Move, r Reason) Plan {
	return Plan{TaskID: m.TaskID, From: m.From, To: m.To, Reason: r}
}

// PlanMove validates a move against the current projection. Reordering
// inside one list is always accepted; entering a different list is gated by
// the destination column's WIP limit.
func PlanMove(p *Projection, m Move) Plan {
	dest, ok := p.Bucket(m.To.Column)
	if !ok {
		return reject(m, ReasonUnknownColumn)
	}
	destList := dest.list(m.To.Subsection)
	if destList == nil {
		return reject(m, ReasonInvalidSubsection)
	}

	// The board may have changed since the UI captured the source slot, so
	// trust the projection over the request.
	loc, idx, found := p.Locate(m.TaskID)
	if !found {
		return reject(m, ReasonTaskNotFound)
	}
	from := Position{Location: loc, Index: idx}
	to := m.To

	if from.Location == to.Location {
		to.Index = clamp(to.Index, 0, len(*destList)-1)
		task, _ := p.Task(m.TaskID)
		if from == to {
			return Plan{Accepted: true, TaskID: m.TaskID, From: from, To: to, NewStatus: task.Status}
		}
		return Plan{Accepted: true, TaskID: m.TaskID, From: from, To: to, NewStatus: Encode(to.Location)}
	}

	count := Count(dest)
	if from.Column == to.Column {
		// leaving one subsection for the other does not add to the column
		count--
	}
	if limit, limited := dest.Column.Limit(); limited && count >= limit {
		return Plan{TaskID: m.TaskID, From: from, To: to, Reason: ReasonWipLimitReached}
	}

	status := Encode(to.Location)
	if !status.Valid() {
		return Plan{TaskID: m.TaskID, From: from, To: to, Reason: ReasonUnknownColumn}
	}
	to.Index = clamp(to.Index, 0, len(*destList))
	return Plan{Accepted: true, TaskID: m.TaskID, From: from, To: to, NewStatus: status}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
