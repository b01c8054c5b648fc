// Package client talks to the workout-chat HTTP API.
package client

import (
	"alcyxob/workout-chat/internal/chat"
	"alcyxob/workout-chat/internal/domain"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxErrorBodyBytes = 2048

// Client implements chat.API over HTTP with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ chat.API = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Streaming responses are long
// lived, so the client should not set a global Timeout; callers bound each call
// with its context instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API rooted at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/api/v1/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

// Unit is a unit as listed by the API.
type Unit struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListUnits returns the units the caller owns or coaches.
func (c *Client) ListUnits(ctx context.Context) ([]Unit, error) {
	var out []Unit
	if err := c.doJSON(ctx, "list units", http.MethodGet, "/api/v1/units", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWorkouts returns the persisted workouts of a unit.
func (c *Client) ListWorkouts(ctx context.Context, unitID string) ([]domain.ExistingWorkout, error) {
	var out []domain.ExistingWorkout
	path := "/api/v1/units/" + url.PathEscape(unitID) + "/workouts"
	if err := c.doJSON(ctx, "list workouts", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessPlan asks the API to persist one plan.
func (c *Client) ProcessPlan(ctx context.Context, req domain.ProcessPlanRequest) error {
	return c.doJSON(ctx, "process plan", http.MethodPost, "/api/v1/workout-plans/process", req, nil)
}

// StreamChat starts a generation turn and returns the text/event-stream body.
// The caller must close it.
func (c *Client) StreamChat(ctx context.Context, turn domain.ChatTurnRequest) (io.ReadCloser, error) {
	const op = "stream chat"
	req, err := c.newRequest(ctx, op, http.MethodPost, "/api/v1/workout-chat/stream", turn)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &chat.APIError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, responseError(op, resp)
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, op, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &chat.APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &chat.APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorBody covers both {"error": ...} and {"message": ...} payloads.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	apiErr := &chat.APIError{Op: op, Status: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
