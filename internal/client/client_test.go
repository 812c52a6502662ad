package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"taskboard/internal/client"
	"taskboard/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(i int) *int { return &i }

func TestLogin_StoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])
			_, _ = io.WriteString(w, `{"token":"tok-1","user":{"id":"u1"}}`)
		case "/boards":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `[{"id":"b1","name":"Team","code":"ABCD1234"}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL + "/")

	token, err := c.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	boards, err := c.ListBoards(context.Background())
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "ABCD1234", boards[0].Code)
}

func TestFetchBoard_DecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boards/b1", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"id":"b1","name":"Team","code":"C",
			"columns":[{"id":"test","title":"Test","hasSubsections":false,"allowWipLimit":true,"wipLimit":2,"doneRule":null}],
			"tasks":[{"id":"t1","title":"A","status":"Test","assignedTo":null}]
		}`)
	}))
	defer srv.Close()

	snap, err := client.New(srv.URL, client.WithToken("tok")).FetchBoard(context.Background(), "b1")

	require.NoError(t, err)
	require.Len(t, snap.Columns, 1)
	assert.Equal(t, 2, *snap.Columns[0].WipLimit)
	assert.Equal(t, engine.StatusTest, snap.Tasks[0].Status)
}

func TestUpdateTask_SendsStatusAndSurfacesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/boards/b1/tasks/t1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Specification Active", body["status"])
		assert.NotContains(t, body, "title")

		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"Move rejected","reason":"wip-limit-reached"}`)
	}))
	defer srv.Close()
	status := engine.StatusSpecificationActive

	_, err := client.New(srv.URL).UpdateTask(context.Background(), "b1", "t1", engine.TaskUpdate{Status: &status})

	reason, ok := engine.IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, engine.ReasonWipLimitReached, reason)
}

func TestUpdateTask_ServerErrorWithoutReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"Failed to move task"}`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).UpdateTask(context.Background(), "b1", "t1", engine.TaskUpdate{})

	_, rejected := engine.IsRejection(err)
	assert.False(t, rejected)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Failed to move task", apiErr.Message)
}

func TestDeleteTask_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, client.New(srv.URL).DeleteTask(context.Background(), "b1", "t1"))
}

func TestRenameAndDeleteBoard(t *testing.T) {
	var deleted atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boards/b1", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = io.WriteString(w, `{"id":"b1","name":"`+body["name"]+`","code":"ABCD1234"}`)
		case http.MethodDelete:
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL)

	board, err := c.RenameBoard(context.Background(), "b1", "Release train")
	require.NoError(t, err)
	assert.Equal(t, "Release train", board.Name)

	require.NoError(t, c.DeleteBoard(context.Background(), "b1"))
	assert.True(t, deleted.Load())
}

func TestUpdateColumn_RejectsLimitBelowOneLocally(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).UpdateColumn(context.Background(), "b1", "test", engine.ColumnSettings{WipLimit: intp(0)})

	assert.ErrorIs(t, err, engine.ErrInvalidWipLimit)
	assert.Zero(t, calls.Load())
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Invalid or expired token"}`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).ListBoards(context.Background())

	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestClient_DrivesEngine(t *testing.T) {
	var moved atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"id":"b1","columns":[
				{"id":"backlog","title":"Backlog"},
				{"id":"test","title":"Test","allowWipLimit":true}
			],"tasks":[{"id":"t1","title":"A","status":"Backlog"}]}`)
		case http.MethodPut:
			moved.Store(true)
			_, _ = io.WriteString(w, `{"id":"t1","title":"A","status":"Test"}`)
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL)
	e := engine.New("b1", c, c, engine.Options{})
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	ticket, err := e.Move(context.Background(), engine.Move{
		TaskID: "t1",
		To:     engine.Position{Location: engine.Location{Column: "test"}},
	})
	require.NoError(t, err)
	require.NoError(t, ticket.Wait(context.Background()))

	assert.True(t, moved.Load())
	tasks, err := e.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, engine.StatusTest, tasks[0].Status)
}

func TestClient_ServerWipRejectionRollsEngineBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"id":"b1","columns":[
				{"id":"backlog","title":"Backlog"},
				{"id":"test","title":"Test","allowWipLimit":true}
			],"tasks":[{"id":"t1","title":"A","status":"Backlog"}]}`)
		case http.MethodPut:
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"Move rejected","reason":"wip-limit-reached"}`)
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL)
	e := engine.New("b1", c, c, engine.Options{})
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	ticket, err := e.Move(context.Background(), engine.Move{
		TaskID: "t1",
		To:     engine.Position{Location: engine.Location{Column: "test"}},
	})
	require.NoError(t, err)
	err = ticket.Wait(context.Background())

	reason, ok := engine.IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, engine.ReasonWipLimitReached, reason)
	tasks, err := e.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, engine.StatusBacklog, tasks[0].Status)
}
