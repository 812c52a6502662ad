package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"taskboard/internal/engine"
	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockBoardStore struct {
	mock.Mock
}

func (m *MockBoardStore) Create(ctx context.Context, board *model.Board) error {
	args := m.Called(ctx, board)
	return args.Error(0)
}

func (m *MockBoardStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Board, error) {
	args := m.Called(ctx, id)
	board, _ := args.Get(0).(*model.Board)
	return board, args.Error(1)
}

func (m *MockBoardStore) Rename(ctx context.Context, id uuid.UUID, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *MockBoardStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBoardStore) GetByCode(ctx context.Context, code string) (*model.Board, error) {
	args := m.Called(ctx, code)
	board, _ := args.Get(0).(*model.Board)
	return board, args.Error(1)
}

func (m *MockBoardStore) ListForMember(ctx context.Context, userID uuid.UUID) ([]model.Board, error) {
	args := m.Called(ctx, userID)
	boards, _ := args.Get(0).([]model.Board)
	return boards, args.Error(1)
}

type MockMemberStore struct {
	mock.Mock
}

func (m *MockMemberStore) AddMember(ctx context.Context, boardID, userID uuid.UUID) error {
	args := m.Called(ctx, boardID, userID)
	return args.Error(0)
}

func (m *MockMemberStore) IsMember(ctx context.Context, boardID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, boardID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberStore) ListMembers(ctx context.Context, boardID uuid.UUID) ([]model.BoardMember, error) {
	args := m.Called(ctx, boardID)
	members, _ := args.Get(0).([]model.BoardMember)
	return members, args.Error(1)
}

type MockColumnStore struct {
	mock.Mock
}

func (m *MockColumnStore) GetBySlug(ctx context.Context, boardID uuid.UUID, slug string) (*model.Column, error) {
	args := m.Called(ctx, boardID, slug)
	column, _ := args.Get(0).(*model.Column)
	return column, args.Error(1)
}

func (m *MockColumnStore) UpdateSettings(ctx context.Context, column *model.Column) error {
	args := m.Called(ctx, column)
	return args.Error(0)
}

type MockTaskStore struct {
	mock.Mock
	Board engine.Snapshot
}

func (m *MockTaskStore) Create(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskStore) GetByID(ctx context.Context, boardID, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, boardID, id)
	task, _ := args.Get(0).(*model.Task)
	return task, args.Error(1)
}

// Update hands planner the Board snapshot, standing in for the rows read
// under the board lock. A planner error ends the call before it is recorded.
func (m *MockTaskStore) Update(ctx context.Context, task *model.Task, details bool, planner repository.Planner) error {
	var place *repository.Placement
	if planner != nil {
		var err error
		if place, err = planner(m.Board); err != nil {
			return err
		}
	}
	args := m.Called(ctx, task, details, place)
	return args.Error(0)
}

func (m *MockTaskStore) Delete(ctx context.Context, boardID, id uuid.UUID) error {
	args := m.Called(ctx, boardID, id)
	return args.Error(0)
}

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) LoadSnapshot(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, error) {
	args := m.Called(ctx, boardID)
	snap, _ := args.Get(0).(engine.Snapshot)
	return snap, args.Error(1)
}

func (m *MockSnapshots) Evict(ctx context.Context, boardID uuid.UUID) {
	m.Called(ctx, boardID)
}

// withUser stands in for the JWT middleware.
func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func newRouter(userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(userID))
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}
