package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"taskboard/internal/engine"
)

// parseLocation reads "column" or "column-active" / "column-done".
func parseLocation(s string) engine.Location {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sub := range []engine.Subsection{engine.SubsectionActive, engine.SubsectionDone} {
		if col, ok := strings.CutSuffix(s, "-"+string(sub)); ok {
			return engine.Location{Column: col, Subsection: sub}
		}
	}
	return engine.Location{Column: s}
}

// resolveLocation sends a bare subsectioned column to its active list.
func resolveLocation(p *engine.Projection, loc engine.Location) engine.Location {
	b, ok := p.Bucket(loc.Column)
	if ok && b.Column.Kind() == engine.SubsectionedColumn && loc.Subsection == engine.SubsectionNone {
		loc.Subsection = engine.SubsectionActive
	}
	return loc
}

// endOf is the append index for loc.
func endOf(p *engine.Projection, loc engine.Location) int {
	b, ok := p.Bucket(loc.Column)
	if !ok {
		return 0
	}
	return len(b.List(loc.Subsection))
}

func renderBoard(w io.Writer, v engine.View) {
	if !v.Loaded || v.Projection == nil {
		fmt.Fprintln(w, "Loading board...")
		return
	}

	pending := make(map[string]bool, len(v.Pending))
	for _, id := range v.Pending {
		pending[id] = true
	}

	title := v.Name
	if title == "" {
		title = v.BoardID
	}
	fmt.Fprintf(w, "== %s", title)
	if v.Code != "" {
		fmt.Fprintf(w, " (join code %s)", v.Code)
	}
	fmt.Fprintln(w, " ==")

	over := v.Projection.OverLimit()
	sort.Strings(over)
	for _, id := range v.Projection.Columns() {
		b, _ := v.Projection.Bucket(id)
		fmt.Fprintf(w, "\n%s %s\n", b.Column.Title, countLabel(b, contains(over, id)))
		if b.Column.DoneRule != nil {
			fmt.Fprintf(w, "  done when: %s\n", *b.Column.DoneRule)
		}
		switch b.Column.Kind() {
		case engine.SubsectionedColumn:
			renderList(w, "  active", b.Active, pending)
			renderList(w, "  done", b.Done, pending)
		default:
			renderList(w, "", b.Flat, pending)
		}
	}
}

func countLabel(b *engine.Bucket, exceeded bool) string {
	n := engine.Count(b)
	limit, ok := b.Column.Limit()
	switch {
	case !ok:
		return fmt.Sprintf("[%d]", n)
	case exceeded:
		return fmt.Sprintf("[%d/%d OVER LIMIT]", n, limit)
	default:
		return fmt.Sprintf("[%d/%d]", n, limit)
	}
}

func renderList(w io.Writer, header string, tasks []engine.Task, pending map[string]bool) {
	indent := "  "
	if header != "" {
		fmt.Fprintln(w, header)
		indent = "    "
	}
	for _, t := range tasks {
		mark := ""
		if pending[t.ID] {
			mark = " (saving)"
		}
		fmt.Fprintf(w, "%s- %s  %s%s\n", indent, t.ID, t.Title, mark)
	}
}

func contains(ids []string, id string) bool {
	i := sort.SearchStrings(ids, id)
	return i < len(ids) && ids[i] == id
}
