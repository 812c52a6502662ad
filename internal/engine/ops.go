package engine

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Move plans a move and, when accepted, applies it locally before the
// server has confirmed it. A policy rejection is returned as a
// *RejectionError and leaves state untouched. The returned Ticket resolves
// once the server has answered; on failure the move has been rolled back.
func (e *Engine) Move(ctx context.Context, m Move) (*Ticket, error) {
	var (
		plan    Plan
		prev    *Projection
		applied uint64
		opErr   error
	)
	err := e.do(func(st *boardState) {
		switch {
		case st.closing:
			opErr = ErrClosed
			return
		case !st.loaded:
			opErr = ErrNotLoaded
			return
		}
		if _, busy := st.pendingTasks[m.TaskID]; busy {
			opErr = ErrMoveInFlight
			return
		}
		plan = PlanMove(st.projection, m)
		if !plan.Accepted {
			opErr = &RejectionError{TaskID: m.TaskID, Reason: plan.Reason}
			return
		}
		if plan.Noop() {
			return
		}
		prev = st.projection
		st.projection = Apply(st.projection, plan)
		st.version++
		applied = st.version
		st.pendingTasks[m.TaskID] = struct{}{}
		e.inflight.Add(1)
		e.notify(st)
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		if reason, ok := IsRejection(opErr); ok {
			e.logger.WithFields(log.Fields{"task_id": m.TaskID, "reason": reason}).Debug("move rejected")
		}
		return nil, opErr
	}

	ticket := newTicket("move", plan)
	if plan.Noop() {
		ticket.resolve(nil)
		return ticket, nil
	}
	go e.persistMove(plan, prev, applied, ticket)
	return ticket, nil
}

func (e *Engine) persistMove(plan Plan, prev *Projection, applied uint64, ticket *Ticket) {
	defer e.inflight.Done()

	ctx, cancel, span := e.startSpan("persist_move",
		attribute.String("task.id", plan.TaskID),
		attribute.String("task.status", plan.NewStatus.String()),
		attribute.Bool("move.cross_bucket", plan.CrossBucket()),
	)
	defer cancel()
	defer span.End()

	status := plan.NewStatus
	position := plan.To.Index
	saved, err := e.persist.UpdateTask(ctx, e.boardID, plan.TaskID, TaskUpdate{Status: &status, Position: &position})
	if err != nil {
		perr := &PersistError{Op: "move", TaskID: plan.TaskID, Err: err}
		_ = e.do(func(st *boardState) {
			delete(st.pendingTasks, plan.TaskID)
			st.rollbackMove(plan, prev, applied)
			e.notify(st)
		})
		// the server's own policy check lost a race with another client
		if reason, ok := IsRejection(err); ok {
			e.logger.WithFields(log.Fields{"task_id": plan.TaskID, "reason": reason}).Debug("move refused by server, rolled back")
		} else {
			failSpan(span, err)
			e.logger.WithError(err).WithField("task_id", plan.TaskID).Warn("move rolled back")
		}
		ticket.resolve(perr)
		return
	}

	_ = e.do(func(st *boardState) {
		delete(st.pendingTasks, plan.TaskID)
		if st.reconcile(saved) {
			e.notify(st)
		}
	})
	ticket.resolve(nil)
}

// rollbackMove restores the pre-move state. If nothing else changed since the
// move was applied the old projection is reinstated as is; otherwise only
// this task is put back next to the neighbours it had before the move.
func (st *boardState) rollbackMove(plan Plan, prev *Projection, applied uint64) {
	if st.version == applied {
		st.projection = prev
		st.version++
		return
	}
	loc, idx, ok := prev.Locate(plan.TaskID)
	if !ok {
		return
	}
	orig, _ := prev.Task(plan.TaskID)
	next := st.projection.Clone()
	if _, _, ok := next.removeTask(plan.TaskID); !ok {
		return
	}
	next.insertTask(Position{Location: loc, Index: next.anchorIndex(prev, loc, idx)}, orig)
	st.projection = next
	st.version++
}

// reconcile copies server-owned content fields onto the local task. The
// local slot is kept: the server does not own bucket position.
func (st *boardState) reconcile(saved Task) bool {
	if saved.ID == "" {
		return false
	}
	local, ok := st.projection.Task(saved.ID)
	if !ok {
		return false
	}
	if saved.Title != "" {
		local.Title = saved.Title
	}
	local.Description = saved.Description
	local.Color = saved.Color
	local.AssignedTo = saved.AssignedTo

	next := st.projection.Clone()
	next.replaceTask(local)
	st.projection = next
	st.version++
	return true
}

// CreateTask adds a task to the backlog. Creation needs the server-issued id,
// so it is not optimistic: the task appears once the server has answered.
func (e *Engine) CreateTask(ctx context.Context, title string, color *string) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}
	if !e.Loaded() {
		return Task{}, ErrNotLoaded
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "engine.persist_create", traceBoard(e.boardID))
	defer span.End()

	created, err := e.persist.CreateTask(ctx, e.boardID, NewTask{Title: title, Status: StatusBacklog, Color: color})
	if err != nil {
		failSpan(span, err)
		e.logger.WithError(err).Warn("task create failed")
		return Task{}, &PersistError{Op: "create", Err: err}
	}

	err = e.do(func(st *boardState) {
		if _, exists := st.projection.Task(created.ID); exists {
			return
		}
		next := st.projection.Clone()
		backlog, _ := next.Bucket(BacklogColumn)
		sub := firstSubsection(backlog.Column)
		next.insertTask(Position{Location: Location{Column: BacklogColumn, Subsection: sub}, Index: len(backlog.List(sub))}, created)
		st.projection = next
		st.version++
		e.notify(st)
	})
	return created, err
}

// DeleteTask removes a task locally and asks the server to delete it. The
// task is restored in place if the server refuses.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) (*Ticket, error) {
	var (
		pos   Position
		task  Task
		opErr error
	)
	err := e.do(func(st *boardState) {
		if opErr = st.guardTask(taskID); opErr != nil {
			return
		}
		next := st.projection.Clone()
		var ok bool
		pos, task, ok = next.removeTask(taskID)
		if !ok {
			opErr = ErrTaskNotFound
			return
		}
		st.projection = next
		st.version++
		st.pendingTasks[taskID] = struct{}{}
		e.inflight.Add(1)
		e.notify(st)
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	ticket := newTicket("delete", Plan{TaskID: taskID, From: pos})
	go func() {
		defer e.inflight.Done()
		ctx, cancel, span := e.startSpan("persist_delete", attribute.String("task.id", taskID))
		defer cancel()
		defer span.End()

		if err := e.persist.DeleteTask(ctx, e.boardID, taskID); err != nil {
			failSpan(span, err)
			_ = e.do(func(st *boardState) {
				delete(st.pendingTasks, taskID)
				next := st.projection.Clone()
				next.insertTask(pos, task)
				st.projection = next
				st.version++
				e.notify(st)
			})
			e.logger.WithError(err).WithField("task_id", taskID).Warn("delete rolled back")
			ticket.resolve(&PersistError{Op: "delete", TaskID: taskID, Err: err})
			return
		}
		_ = e.do(func(st *boardState) { delete(st.pendingTasks, taskID) })
		ticket.resolve(nil)
	}()
	return ticket, nil
}

// TaskDetails are the editable, non-positional fields of a task.
type TaskDetails struct {
	Title       *string
	Description *string
	Color       *string
	AssignedTo  *string
}

// UpdateTask edits task details optimistically.
func (e *Engine) UpdateTask(ctx context.Context, taskID string, d TaskDetails) (*Ticket, error) {
	if d.Title != nil && strings.TrimSpace(*d.Title) == "" {
		return nil, ErrEmptyTitle
	}
	var (
		before Task
		opErr  error
	)
	err := e.do(func(st *boardState) {
		if opErr = st.guardTask(taskID); opErr != nil {
			return
		}
		var ok bool
		before, ok = st.projection.Task(taskID)
		if !ok {
			opErr = ErrTaskNotFound
			return
		}
		after := cloneTask(before)
		if d.Title != nil {
			after.Title = strings.TrimSpace(*d.Title)
		}
		if d.Description != nil {
			after.Description = cloneString(d.Description)
		}
		if d.Color != nil {
			after.Color = cloneString(d.Color)
		}
		if d.AssignedTo != nil {
			after.AssignedTo = cloneString(d.AssignedTo)
		}
		next := st.projection.Clone()
		next.replaceTask(after)
		st.projection = next
		st.version++
		st.pendingTasks[taskID] = struct{}{}
		e.inflight.Add(1)
		e.notify(st)
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	ticket := newTicket("update", Plan{TaskID: taskID})
	go func() {
		defer e.inflight.Done()
		ctx, cancel, span := e.startSpan("persist_update", attribute.String("task.id", taskID))
		defer cancel()
		defer span.End()

		saved, err := e.persist.UpdateTask(ctx, e.boardID, taskID, TaskUpdate{
			Title:       d.Title,
			Description: d.Description,
			Color:       d.Color,
			AssignedTo:  d.AssignedTo,
		})
		if err != nil {
			failSpan(span, err)
			_ = e.do(func(st *boardState) {
				delete(st.pendingTasks, taskID)
				next := st.projection.Clone()
				if next.replaceTask(before) {
					st.projection = next
					st.version++
				}
				e.notify(st)
			})
			e.logger.WithError(err).WithField("task_id", taskID).Warn("task update rolled back")
			ticket.resolve(&PersistError{Op: "update", TaskID: taskID, Err: err})
			return
		}
		_ = e.do(func(st *boardState) {
			delete(st.pendingTasks, taskID)
			if st.reconcile(saved) {
				e.notify(st)
			}
		})
		ticket.resolve(nil)
	}()
	return ticket, nil
}

// UpdateColumn changes a column's WIP limit and done rule. A limit below 1
// never reaches the server.
func (e *Engine) UpdateColumn(ctx context.Context, columnID string, s ColumnSettings) (*Ticket, error) {
	if s.WipLimit != nil && *s.WipLimit < 1 {
		return nil, ErrInvalidWipLimit
	}
	var (
		before Column
		opErr  error
	)
	err := e.do(func(st *boardState) {
		switch {
		case st.closing:
			opErr = ErrClosed
			return
		case !st.loaded:
			opErr = ErrNotLoaded
			return
		}
		b, ok := st.projection.Bucket(columnID)
		if !ok {
			opErr = ErrUnknownColumn
			return
		}
		before = b.Column
		if s.WipLimit != nil && !before.AllowWipLimit {
			opErr = ErrWipLimitNotAllowed
			return
		}
		if _, busy := st.pendingColumns[columnID]; busy {
			opErr = ErrMoveInFlight
			return
		}
		after := before
		after.WipLimit = cloneInt(s.WipLimit)
		after.DoneRule = cloneString(s.DoneRule)
		next := st.projection.Clone()
		next.setColumn(after)
		st.projection = next
		st.version++
		st.pendingColumns[columnID] = struct{}{}
		e.inflight.Add(1)
		e.notify(st)
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	ticket := newTicket("column", Plan{})
	go func() {
		defer e.inflight.Done()
		ctx, cancel, span := e.startSpan("persist_column", attribute.String("column.id", columnID))
		defer cancel()
		defer span.End()

		saved, err := e.persist.UpdateColumn(ctx, e.boardID, columnID, s)
		_ = e.do(func(st *boardState) {
			delete(st.pendingColumns, columnID)
			next := st.projection.Clone()
			switch {
			case err != nil:
				next.setColumn(before)
			case saved.ID == columnID:
				next.setColumn(saved)
			default:
				return
			}
			st.projection = next
			st.version++
			e.notify(st)
		})
		if err != nil {
			failSpan(span, err)
			e.logger.WithError(err).WithField("column_id", columnID).Warn("column update rolled back")
			ticket.resolve(&PersistError{Op: "column", Err: err})
			return
		}
		ticket.resolve(nil)
	}()
	return ticket, nil
}

func (st *boardState) guardTask(taskID string) error {
	switch {
	case st.closing:
		return ErrClosed
	case !st.loaded:
		return ErrNotLoaded
	}
	if _, busy := st.pendingTasks[taskID]; busy {
		return ErrMoveInFlight
	}
	return nil
}
