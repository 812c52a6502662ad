package engine

// Bucket holds the tasks of one column. Which lists are used depends on
// Column.Kind: Flat for flat columns, Active and Done for subsectioned ones.
type Bucket struct {
	Column Column
	Flat   []Task
	Active []Task
	Done   []Task
}

// List returns the list addressed by sub, or nil if the column has no such
// list.
func (b *Bucket) List(sub Subsection) []Task {
	p := b.list(sub)
	if p == nil {
		return nil
	}
	return *p
}

func (b *Bucket) list(sub Subsection) *[]Task {
	switch b.Column.Kind() {
	case SubsectionedColumn:
		switch sub {
		case SubsectionActive:
			return &b.Active
		case SubsectionDone:
			return &b.Done
		}
	case FlatColumn:
		if sub == SubsectionNone {
			return &b.Flat
		}
	}
	return nil
}

func (b *Bucket) clone() *Bucket {
	return &Bucket{
		Column: b.Column,
		Flat:   cloneTasks(b.Flat),
		Active: cloneTasks(b.Active),
		Done:   cloneTasks(b.Done),
	}
}

func cloneTasks(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = cloneTask(t)
	}
	return out
}

// Projection is the nested column view of a flat task collection.
type Projection struct {
	order   []string
	buckets map[string]*Bucket
}

// Project buckets tasks by their decoded status. Relative task order is
// preserved inside every list. Every column gets a bucket, and a backlog
// bucket always exists so the decode fallback has somewhere to land.
func Project(tasks []Task, columns []Column) *Projection {
	p := &Projection{
		order:   make([]string, 0, len(columns)+1),
		buckets: make(map[string]*Bucket, len(columns)+1),
	}
	for _, c := range columns {
		if _, dup := p.buckets[c.ID]; dup {
			continue
		}
		p.order = append(p.order, c.ID)
		p.buckets[c.ID] = newBucket(c)
	}
	if _, ok := p.buckets[BacklogColumn]; !ok {
		p.order = append([]string{BacklogColumn}, p.order...)
		p.buckets[BacklogColumn] = newBucket(Column{ID: BacklogColumn, Title: "Backlog"})
	}

	codec := NewCodec(columns)
	for _, t := range tasks {
		loc := codec.Decode(t.Status)
		l := p.buckets[loc.Column].list(loc.Subsection)
		if l == nil {
			// backlog was synthesised or configured as subsectioned
			l = p.buckets[BacklogColumn].list(firstSubsection(p.buckets[BacklogColumn].Column))
		}
		*l = append(*l, cloneTask(t))
	}
	return p
}

func newBucket(c Column) *Bucket {
	b := &Bucket{Column: c}
	if c.Kind() == SubsectionedColumn {
		b.Active = []Task{}
		b.Done = []Task{}
	} else {
		b.Flat = []Task{}
	}
	return b
}

func firstSubsection(c Column) Subsection {
	if c.Kind() == SubsectionedColumn {
		return SubsectionActive
	}
	return SubsectionNone
}

// Columns returns the column ids in board order.
func (p *Projection) Columns() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Schema returns the column configuration in board order.
func (p *Projection) Schema() []Column {
	out := make([]Column, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.buckets[id].Column)
	}
	return out
}

func (p *Projection) Bucket(columnID string) (*Bucket, bool) {
	b, ok := p.buckets[columnID]
	return b, ok
}

// Tasks flattens the projection in column order, active before done.
func (p *Projection) Tasks() []Task {
	var out []Task
	for _, id := range p.order {
		b := p.buckets[id]
		out = append(out, cloneTasks(b.Flat)...)
		out = append(out, cloneTasks(b.Active)...)
		out = append(out, cloneTasks(b.Done)...)
	}
	if out == nil {
		out = []Task{}
	}
	return out
}

// Locate finds a task by id.
func (p *Projection) Locate(taskID string) (Location, int, bool) {
	for _, id := range p.order {
		b := p.buckets[id]
		for _, sub := range []Subsection{SubsectionNone, SubsectionActive, SubsectionDone} {
			for i, t := range b.List(sub) {
				if t.ID == taskID {
					return Location{Column: id, Subsection: sub}, i, true
				}
			}
		}
	}
	return Location{}, 0, false
}

// Task returns a copy of the task with the given id.
func (p *Projection) Task(taskID string) (Task, bool) {
	loc, i, ok := p.Locate(taskID)
	if !ok {
		return Task{}, false
	}
	return cloneTask(p.buckets[loc.Column].List(loc.Subsection)[i]), true
}

// OverLimit lists the columns whose count is strictly above their limit.
func (p *Projection) OverLimit() []string {
	var out []string
	for _, id := range p.order {
		if Exceeded(p.buckets[id]) {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p *Projection) Clone() *Projection {
	c := &Projection{
		order:   make([]string, len(p.order)),
		buckets: make(map[string]*Bucket, len(p.buckets)),
	}
	copy(c.order, p.order)
	for id, b := range p.buckets {
		c.buckets[id] = b.clone()
	}
	return c
}
