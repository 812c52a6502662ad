// Package client talks to the taskboard server over HTTP. It implements the
// engine's Fetcher and Persister.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskboard/internal/engine"

	"github.com/bytedance/sonic"
)

const defaultTimeout = 10 * time.Second

var ErrUnauthorized = errors.New("not logged in or token expired")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, e.Reason)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var (
	_ engine.Fetcher   = (*Client)(nil)
	_ engine.Persister = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Board struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	var out authResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/register", body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	var out []Board
	err := c.do(ctx, http.MethodGet, "/boards", nil, &out)
	return out, err
}

func (c *Client) CreateBoard(ctx context.Context, name string) (Board, error) {
	var out Board
	err := c.do(ctx, http.MethodPost, "/boards", map[string]string{"name": name}, &out)
	return out, err
}

func (c *Client) JoinBoard(ctx context.Context, code string) (Board, error) {
	var out Board
	err := c.do(ctx, http.MethodPost, "/boards/join", map[string]string{"code": code}, &out)
	return out, err
}

func (c *Client) RenameBoard(ctx context.Context, boardID, name string) (Board, error) {
	var out Board
	err := c.do(ctx, http.MethodPut, boardPath(boardID), map[string]string{"name": name}, &out)
	return out, err
}

func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.do(ctx, http.MethodDelete, boardPath(boardID), nil, nil)
}

func (c *Client) FetchBoard(ctx context.Context, boardID string) (engine.Snapshot, error) {
	var out engine.Snapshot
	err := c.do(ctx, http.MethodGet, boardPath(boardID), nil, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, boardID, taskID string, upd engine.TaskUpdate) (engine.Task, error) {
	var out engine.Task
	err := c.do(ctx, http.MethodPut, boardPath(boardID, "tasks", taskID), upd, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return out, &engine.RejectionError{TaskID: taskID, Reason: engine.Reason(apiErr.Reason)}
	}
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, boardID string, t engine.NewTask) (engine.Task, error) {
	var out engine.Task
	err := c.do(ctx, http.MethodPost, boardPath(boardID, "tasks"), t, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, boardID, taskID string) error {
	return c.do(ctx, http.MethodDelete, boardPath(boardID, "tasks", taskID), nil, nil)
}

// UpdateColumn refuses a WIP limit below 1 without a round trip.
func (c *Client) UpdateColumn(ctx context.Context, boardID, columnID string, s engine.ColumnSettings) (engine.Column, error) {
	if s.WipLimit != nil && *s.WipLimit < 1 {
		return engine.Column{}, engine.ErrInvalidWipLimit
	}
	var out engine.Column
	err := c.do(ctx, http.MethodPut, boardPath(boardID, "columns", columnID), s, &out)
	return out, err
}

func boardPath(boardID string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/boards/")
	b.WriteString(url.PathEscape(boardID))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && path != "/login" {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var eb errorBody
		if sonic.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			apiErr.Message, apiErr.Reason = eb.Error, eb.Reason
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
