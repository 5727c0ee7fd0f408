// Package api is a typed client for the backend auth endpoints.
//
// Every response is decoded into an explicit schema and narrowed before it is returned:
// callers never see a half-populated payload, they get ErrSchema instead.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var ErrSchema = errors.New("response did not match the expected schema")

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// TransportError is returned when no response was received at all
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.timeout = d
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authorized returns a view of the client whose requests carry the bearer token from ts
func (c *Client) Authorized(ts oauth2.TokenSource) *Authorized {
	return &Authorized{client: c, source: ts}
}

// WithBearer pins a single raw token, e.g. the one being refreshed or revoked
func (c *Client) WithBearer(token string) *Authorized {
	return c.Authorized(oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	body, err := c.do(ctx, c.httpClient, http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, err
	}
	return decodeLoginResponse(body)
}

type Authorized struct {
	client *Client
	source oauth2.TokenSource
}

func (a *Authorized) httpClient(ctx context.Context) *http.Client {
	// oauth2 wraps the transport of whichever client is stored under oauth2.HTTPClient
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client.httpClient)
	return oauth2.NewClient(ctx, a.source)
}

func (a *Authorized) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return a.client.do(ctx, a.httpClient(ctx), method, path, payload)
}

func (a *Authorized) Refresh(ctx context.Context) (*RefreshResponse, error) {
	body, err := a.do(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return nil, err
	}

	var res RefreshResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: refresh: %v", ErrSchema, err)
	}
	if res.Success != nil && !*res.Success {
		return nil, fmt.Errorf("%w: refresh reported success=false", ErrSchema)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response has no access_token", ErrSchema)
	}
	return &res, nil
}

// Logout is best effort: the response body is ignored
func (a *Authorized) Logout(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodPost, "/auth/logout", nil)
	return err
}

func (a *Authorized) Contexts(ctx context.Context) ([]ContextInfo, error) {
	body, err := a.do(ctx, http.MethodGet, "/auth/contexts", nil)
	if err != nil {
		return nil, err
	}
	return decodeContexts(body)
}

func (a *Authorized) SessionContext(ctx context.Context) (*SessionContextResponse, error) {
	body, err := a.do(ctx, http.MethodGet, "/auth/session/context", nil)
	if err != nil {
		return nil, err
	}
	return decodeSessionContext(body)
}

func (a *Authorized) SelectContext(ctx context.Context, groupID, role string) (*SessionContextResponse, error) {
	body, err := a.do(ctx, http.MethodPost, "/auth/session/context", SelectContextRequest{
		GroupID: groupID,
		Role:    role,
	})
	if err != nil {
		return nil, err
	}
	return decodeSessionContext(body)
}

func (a *Authorized) Me(ctx context.Context) (*UserInfo, error) {
	body, err := a.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var res struct {
		Success *bool `json:"success"`
		UserInfo
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: me: %v", ErrSchema, err)
	}
	if res.Success != nil && !*res.Success {
		return nil, fmt.Errorf("%w: me reported success=false", ErrSchema)
	}
	if res.ID == "" && res.CPF == "" {
		return nil, fmt.Errorf("%w: me response identifies no user", ErrSchema)
	}
	return &res.UserInfo, nil
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, method, path string, payload any) ([]byte, error) {
	ctx, cancel := ensureTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		buff, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s body: %w", path, err)
		}
		reqBody = bytes.NewReader(buff)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	return body, nil
}

// FastAPI reports errors under "detail", the frontend proxy under "message"
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	return ""
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

// ID accepts both numeric and string identifiers
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}
