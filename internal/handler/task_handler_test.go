package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"taskboard/internal/engine"
	"taskboard/internal/handler"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	router  http.Handler
	tasks   *MockTaskStore
	members *MockMemberStore
	cache   *MockSnapshots
	userID  uuid.UUID
	boardID uuid.UUID
}

func setupTasks(t *testing.T) *taskFixture {
	t.Helper()
	f := &taskFixture{
		tasks:   new(MockTaskStore),
		members: new(MockMemberStore),
		cache:   new(MockSnapshots),
		userID:  uuid.New(),
		boardID: uuid.New(),
	}
	f.members.On("IsMember", mock.Anything, f.boardID, f.userID).Return(true, nil)
	h := handler.NewTaskHandler(f.tasks, f.members, f.cache)

	r := newRouter(f.userID)
	r.POST("/boards/:id/tasks", h.Create)
	r.PUT("/boards/:id/tasks/:task_id", h.Update)
	r.DELETE("/boards/:id/tasks/:task_id", h.Delete)
	f.router = r
	return f
}

func (f *taskFixture) path(taskID ...uuid.UUID) string {
	p := "/boards/" + f.boardID.String() + "/tasks"
	if len(taskID) > 0 {
		p += "/" + taskID[0].String()
	}
	return p
}

// limitedBoard holds one task already in Specification (limit 1) and the
// given task in the backlog.
func limitedBoard(boardID, taskID uuid.UUID) engine.Snapshot {
	cols := engine.DefaultColumns()
	cols[1].WipLimit = intp(1)
	return engine.Snapshot{
		ID:      boardID.String(),
		Columns: cols,
		Tasks: []engine.Task{
			{ID: uuid.NewString(), Title: "busy", Status: engine.StatusSpecificationActive},
			{ID: taskID.String(), Title: "waiting", Status: engine.StatusBacklog},
		},
	}
}

func statusp(s engine.Status) *engine.Status { return &s }

func TestTaskCreate_Success(t *testing.T) {
	// Arrange
	f := setupTasks(t)
	f.tasks.On("Create", mock.Anything, mock.MatchedBy(func(task *model.Task) bool {
		return task.Title == "Write docs" && task.Status == string(engine.StatusBacklog) && task.CreatedBy == f.userID
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Task).ID = uuid.New()
	}).Return(nil)
	f.cache.On("Evict", mock.Anything, f.boardID).Return()

	// Act
	resp := doJSON(f.router, http.MethodPost, f.path(), handler.CreateTaskRequest{Title: " Write docs "})

	// Assert
	require.Equal(t, http.StatusCreated, resp.Code)
	var got engine.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, engine.StatusBacklog, got.Status)
	assert.Equal(t, "Write docs", got.Title)
	f.tasks.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestTaskCreate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body handler.CreateTaskRequest
	}{
		{"not in backlog", handler.CreateTaskRequest{Title: "x", Status: engine.StatusTest}},
		{"blank title", handler.CreateTaskRequest{Title: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTasks(t)

			resp := doJSON(f.router, http.MethodPost, f.path(), tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestTaskUpdate_MoveRejectedAtLimit(t *testing.T) {
	// Arrange
	f := setupTasks(t)
	taskID := uuid.New()
	f.tasks.On("GetByID", mock.Anything, f.boardID, taskID).
		Return(&model.Task{ID: taskID, BoardID: f.boardID, Status: string(engine.StatusBacklog), Title: "waiting"}, nil)
	f.tasks.Board = limitedBoard(f.boardID, taskID)

	// Act
	resp := doJSON(f.router, http.MethodPut, f.path(taskID),
		engine.TaskUpdate{Status: statusp(engine.StatusSpecificationActive), Title: strp("renamed")})

	// Assert: nothing is written, the title edit included
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), string(engine.ReasonWipLimitReached))
	f.tasks.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Evict", mock.Anything, mock.Anything)
}

func TestTaskUpdate_MoveAccepted(t *testing.T) {
	// Arrange
	f := setupTasks(t)
	taskID := uuid.New()
	f.tasks.On("GetByID", mock.Anything, f.boardID, taskID).
		Return(&model.Task{ID: taskID, BoardID: f.boardID, Status: string(engine.StatusBacklog), Title: "waiting"}, nil)
	f.tasks.Board = limitedBoard(f.boardID, taskID)
	f.tasks.On("Update", mock.Anything, mock.Anything, false, &repository.Placement{Status: string(engine.StatusTest), Position: 0}).
		Run(func(args mock.Arguments) {
			task := args.Get(1).(*model.Task)
			task.Status, task.Position = string(engine.StatusTest), 0
		}).
		Return(nil)
	f.cache.On("Evict", mock.Anything, f.boardID).Return()

	// Act
	resp := doJSON(f.router, http.MethodPut, f.path(taskID), engine.TaskUpdate{Status: statusp(engine.StatusTest)})

	// Assert
	require.Equal(t, http.StatusOK, resp.Code)
	var got engine.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, engine.StatusTest, got.Status)
	f.tasks.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestTaskUpdate_FailedWriteReportsError(t *testing.T) {
	f := setupTasks(t)
	taskID := uuid.New()
	f.tasks.On("GetByID", mock.Anything, f.boardID, taskID).
		Return(&model.Task{ID: taskID, BoardID: f.boardID, Status: string(engine.StatusBacklog), Title: "old"}, nil)
	f.tasks.Board = limitedBoard(f.boardID, taskID)
	f.tasks.On("Update", mock.Anything, mock.Anything, true, mock.Anything).Return(assert.AnError)

	resp := doJSON(f.router, http.MethodPut, f.path(taskID),
		engine.TaskUpdate{Status: statusp(engine.StatusTest), Title: strp("new")})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	f.cache.AssertNotCalled(t, "Evict", mock.Anything, mock.Anything)
}

func TestTaskUpdate_DetailsOnly(t *testing.T) {
	f := setupTasks(t)
	taskID := uuid.New()
	f.tasks.On("GetByID", mock.Anything, f.boardID, taskID).
		Return(&model.Task{ID: taskID, Status: string(engine.StatusTest), Title: "old"}, nil)
	f.tasks.On("Update", mock.Anything, mock.MatchedBy(func(task *model.Task) bool {
		return task.Title == "new" && *task.Description == "details"
	}), true, (*repository.Placement)(nil)).Return(nil)
	f.cache.On("Evict", mock.Anything, f.boardID).Return()

	resp := doJSON(f.router, http.MethodPut, f.path(taskID),
		engine.TaskUpdate{Title: strp("new"), Description: strp("details")})

	assert.Equal(t, http.StatusOK, resp.Code)
	f.tasks.AssertExpectations(t)
}

func TestTaskUpdate_AssigneeMustBeMember(t *testing.T) {
	f := setupTasks(t)
	taskID, outsider := uuid.New(), uuid.New()
	f.members.On("IsMember", mock.Anything, f.boardID, outsider).Return(false, nil)
	f.tasks.On("GetByID", mock.Anything, f.boardID, taskID).
		Return(&model.Task{ID: taskID, Status: string(engine.StatusTest)}, nil)

	resp := doJSON(f.router, http.MethodPut, f.path(taskID), engine.TaskUpdate{AssignedTo: strp(outsider.String())})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "Assignee must be a board member")
	f.tasks.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskUpdate_UnknownStatus(t *testing.T) {
	f := setupTasks(t)

	resp := doJSON(f.router, http.MethodPut, f.path(uuid.New()), map[string]string{"status": "Review"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	f.tasks.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskUpdate_NotFound(t *testing.T) {
	f := setupTasks(t)
	taskID := uuid.New()
	f.tasks.On("GetByID", mock.Anything, f.boardID, taskID).Return(nil, repository.ErrTaskNotFound)

	resp := doJSON(f.router, http.MethodPut, f.path(taskID), engine.TaskUpdate{Title: strp("x")})

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTaskDelete(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"missing", repository.ErrTaskNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTasks(t)
			taskID := uuid.New()
			f.tasks.On("Delete", mock.Anything, f.boardID, taskID).Return(tt.err)
			if tt.err == nil {
				f.cache.On("Evict", mock.Anything, f.boardID).Return()
			}

			resp := doJSON(f.router, http.MethodDelete, f.path(taskID), nil)

			assert.Equal(t, tt.wantStatus, resp.Code)
			f.tasks.AssertExpectations(t)
			f.cache.AssertExpectations(t)
		})
	}
}

func TestTaskRoutes_NonMemberForbidden(t *testing.T) {
	tasks, members, snaps := new(MockTaskStore), new(MockMemberStore), new(MockSnapshots)
	userID, boardID := uuid.New(), uuid.New()
	members.On("IsMember", mock.Anything, boardID, userID).Return(false, nil)
	h := handler.NewTaskHandler(tasks, members, snaps)
	r := newRouter(userID)
	r.DELETE("/boards/:id/tasks/:task_id", h.Delete)

	resp := doJSON(r, http.MethodDelete, "/boards/"+boardID.String()+"/tasks/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	tasks.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
