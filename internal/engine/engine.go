package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	tracerName            = "taskboard/engine"
)

// Fetcher reads the board from the server of record.
type Fetcher interface {
	FetchBoard(ctx context.Context, boardID string) (Snapshot, error)
}

// Persister writes changes to the server of record.
type Persister interface {
	UpdateTask(ctx context.Context, boardID, taskID string, upd TaskUpdate) (Task, error)
	CreateTask(ctx context.Context, boardID string, t NewTask) (Task, error)
	DeleteTask(ctx context.Context, boardID, taskID string) error
	UpdateColumn(ctx context.Context, boardID, columnID string, s ColumnSettings) (Column, error)
}

// Options tunes an Engine. The zero value is usable.
type Options struct {
	Logger         log.FieldLogger
	RequestTimeout time.Duration
	TracerProvider trace.TracerProvider

	// OnChange runs on the engine's own goroutine after every state change.
	// It must not call back into the Engine.
	OnChange func(View)
}

// View is a read-only copy of the local board state.
type View struct {
	BoardID    string
	Name       string
	Code       string
	Loaded     bool
	Projection *Projection
	Pending    []string
}

type boardState struct {
	meta       Snapshot
	projection *Projection
	loaded     bool
	closing    bool

	// version increments on every local change so a poll that started
	// earlier can tell its snapshot is stale.
	version        uint64
	pendingTasks   map[string]struct{}
	pendingColumns map[string]struct{}
}

func (st *boardState) busy() bool {
	return len(st.pendingTasks) > 0 || len(st.pendingColumns) > 0
}

type command struct {
	fn   func(*boardState)
	done chan struct{}
}

// Engine owns the local state of one board view. Every read and write of
// that state runs on a single goroutine fed by a command channel; network
// calls happen outside it.
type Engine struct {
	boardID  string
	fetcher  Fetcher
	persist  Persister
	logger   log.FieldLogger
	tracer   trace.Tracer
	timeout  time.Duration
	onChange func(View)

	ctx    context.Context
	cancel context.CancelFunc

	cmds      chan command
	quit      chan struct{}
	stopped   chan struct{}
	inflight  sync.WaitGroup
	closeOnce sync.Once

	state boardState
}

func New(boardID string, fetcher Fetcher, persist Persister, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		boardID:  boardID,
		fetcher:  fetcher,
		persist:  persist,
		logger:   logger.WithField("board_id", boardID),
		tracer:   tp.Tracer(tracerName),
		timeout:  timeout,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		cmds:     make(chan command),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		state: boardState{
			projection:     Project(nil, nil),
			pendingTasks:   make(map[string]struct{}),
			pendingColumns: make(map[string]struct{}),
		},
	}
	go e.loop()
	return e
}

func (e *Engine) loop() {
	defer close(e.stopped)
	for {
		select {
		case cmd := <-e.cmds:
			cmd.fn(&e.state)
			close(cmd.done)
		case <-e.quit:
			return
		}
	}
}

// do runs fn on the state goroutine and waits for it.
func (e *Engine) do(fn func(*boardState)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-e.quit:
		return ErrClosed
	}
	<-cmd.done
	return nil
}

// Close stops the engine. In-flight persistence calls are cancelled and
// rolled back before it returns.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		_ = e.do(func(st *boardState) { st.closing = true })
		e.cancel()
		e.inflight.Wait()
		close(e.quit)
		<-e.stopped
	})
}

func (e *Engine) notify(st *boardState) {
	if e.onChange == nil {
		return
	}
	e.onChange(st.view(e.boardID))
}

func (st *boardState) view(boardID string) View {
	pending := make([]string, 0, len(st.pendingTasks))
	for id := range st.pendingTasks {
		pending = append(pending, id)
	}
	return View{
		BoardID:    boardID,
		Name:       st.meta.Name,
		Code:       st.meta.Code,
		Loaded:     st.loaded,
		Projection: st.projection.Clone(),
		Pending:    pending,
	}
}

// View returns a copy of the current local state.
func (e *Engine) View() (View, error) {
	var v View
	if err := e.do(func(st *boardState) { v = st.view(e.boardID) }); err != nil {
		return View{}, err
	}
	return v, nil
}

// Tasks returns the local task collection in board order.
func (e *Engine) Tasks() ([]Task, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return v.Projection.Tasks(), nil
}

// Loaded reports whether a snapshot has ever been applied.
func (e *Engine) Loaded() bool {
	var loaded bool
	_ = e.do(func(st *boardState) { loaded = st.loaded })
	return loaded
}

// Load performs the initial fetch. Failing here leaves the view without any
// state, so the error wraps ErrNotLoaded.
func (e *Engine) Load(ctx context.Context) error {
	err := e.Refresh(ctx)
	if err != nil && !e.Loaded() {
		return fmt.Errorf("%w: %w", ErrNotLoaded, err)
	}
	return err
}

// Refresh fetches a snapshot and replaces local state with it. The result is
// discarded while a local change is unconfirmed or when local state moved on
// after the fetch started, so a stale poll cannot revert an optimistic edit.
func (e *Engine) Refresh(ctx context.Context) error {
	var started uint64
	if err := e.do(func(st *boardState) { started = st.version }); err != nil {
		return err
	}

	ctx, span := e.tracer.Start(ctx, "engine.fetch", traceBoard(e.boardID))
	defer span.End()

	snap, err := e.fetcher.FetchBoard(ctx, e.boardID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		e.logger.WithError(err).Warn("board fetch failed, keeping previous snapshot")
		return &FetchError{BoardID: e.boardID, Err: err}
	}

	var applied bool
	err = e.do(func(st *boardState) {
		if st.loaded && (st.busy() || st.version != started) {
			return
		}
		st.replace(snap)
		applied = true
		e.notify(st)
	})
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.Bool("snapshot.applied", applied),
		attribute.Int("snapshot.tasks", len(snap.Tasks)),
	)
	if !applied {
		e.logger.Debug("discarded snapshot that raced a local change")
	}
	return nil
}

func (st *boardState) replace(snap Snapshot) {
	st.meta = Snapshot{ID: snap.ID, Name: snap.Name, Code: snap.Code}
	st.projection = Project(snap.Tasks, snap.Columns)
	st.loaded = true
	st.version++
}

// Ticket tracks the server confirmation of an optimistic change.
type Ticket struct {
	Op   string
	Plan Plan

	done chan struct{}
	err  error
}

func newTicket(op string, plan Plan) *Ticket {
	return &Ticket{Op: op, Plan: plan, done: make(chan struct{})}
}

func (t *Ticket) resolve(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the change is confirmed or rolled back.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err is the outcome after Done is closed: nil or a *PersistError.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the change resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) startSpan(op string, attrs ...attribute.KeyValue) (context.Context, context.CancelFunc, trace.Span) {
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	attrs = append(attrs, attribute.String("board.id", e.boardID))
	ctx, span := e.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	return ctx, cancel, span
}

func traceBoard(boardID string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("board.id", boardID))
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
