package engine

// Apply returns a copy of p with an accepted plan carried out: the task is
// taken out of its source list, its status rewritten and inserted at the
// destination index. Rejected and no-op plans return an unchanged copy.
func Apply(p *Projection, plan Plan) *Projection {
	out := p.Clone()
	if !plan.Accepted || plan.Noop() {
		return out
	}

	loc, idx, ok := out.Locate(plan.TaskID)
	if !ok {
		return out
	}
	src := out.buckets[loc.Column].list(loc.Subsection)
	task := (*src)[idx]
	*src = removeAt(*src, idx)

	dest, ok := out.buckets[plan.To.Column]
	if !ok {
		return p.Clone()
	}
	dst := dest.list(plan.To.Subsection)
	if dst == nil {
		return p.Clone()
	}
	task.Status = plan.NewStatus
	*dst = insertAt(*dst, clamp(plan.To.Index, 0, len(*dst)), task)
	return out
}

// replaceTask swaps the stored copy of a task for t, keeping its slot.
func (p *Projection) replaceTask(t Task) bool {
	loc, idx, ok := p.Locate(t.ID)
	if !ok {
		return false
	}
	(*p.buckets[loc.Column].list(loc.Subsection))[idx] = cloneTask(t)
	return true
}

// removeTask drops a task and reports where it was.
func (p *Projection) removeTask(taskID string) (Position, Task, bool) {
	loc, idx, ok := p.Locate(taskID)
	if !ok {
		return Position{}, Task{}, false
	}
	l := p.buckets[loc.Column].list(loc.Subsection)
	t := (*l)[idx]
	*l = removeAt(*l, idx)
	return Position{Location: loc, Index: idx}, t, true
}

// insertTask places t at pos, falling back to the end of the backlog if the
// slot no longer exists.
func (p *Projection) insertTask(pos Position, t Task) {
	b, ok := p.buckets[pos.Column]
	var l *[]Task
	if ok {
		l = b.list(pos.Subsection)
	}
	if l == nil {
		backlog := p.buckets[BacklogColumn]
		l = backlog.list(firstSubsection(backlog.Column))
		pos.Index = len(*l)
	}
	*l = insertAt(*l, clamp(pos.Index, 0, len(*l)), cloneTask(t))
}

// anchorIndex returns where the task found at idx of loc in before belongs
// in p: just after the nearest earlier neighbour that is still in that list,
// else just before the nearest later one, else idx.
func (p *Projection) anchorIndex(before *Projection, loc Location, idx int) int {
	ob, ok := before.buckets[loc.Column]
	if !ok {
		return idx
	}
	b, ok := p.buckets[loc.Column]
	if !ok {
		return idx
	}
	old, cur := ob.List(loc.Subsection), b.List(loc.Subsection)
	for i := idx - 1; i >= 0; i-- {
		if j := indexOf(cur, old[i].ID); j >= 0 {
			return j + 1
		}
	}
	for i := idx + 1; i < len(old); i++ {
		if j := indexOf(cur, old[i].ID); j >= 0 {
			return j
		}
	}
	return idx
}

func indexOf(s []Task, id string) int {
	for i, t := range s {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// setColumn replaces the configuration of an existing column.
func (p *Projection) setColumn(c Column) bool {
	b, ok := p.buckets[c.ID]
	if !ok {
		return false
	}
	b.Column = c
	return true
}

func removeAt(s []Task, i int) []Task {
	out := make([]Task, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func insertAt(s []Task, i int, t Task) []Task {
	out := make([]Task, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, t)
	return append(out, s[i:]...)
}
