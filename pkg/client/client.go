package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/naveenspark/mulic2/pkg/domain"
)

// Client is the MuliC2 backend API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken returns a copy of c that authenticates with token.
// The underlying http.Client is shared.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token the client sends, if any.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Auth ---

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.post(ctx, "/api/auth/login", creds, &resp); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &resp, nil
}

// Register creates a new operator account and returns the server's message.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/api/auth/register", req, &resp); err != nil {
		return "", fmt.Errorf("client.Register: %w", err)
	}
	return resp.Message, nil
}

// Logout invalidates the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}

// Profile returns the authenticated operator.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.get(ctx, "/api/auth/profile", &u); err != nil {
		return nil, fmt.Errorf("client.Profile: %w", err)
	}
	return &u, nil
}

// Refresh trades the current token for a fresh one.
func (c *Client) Refresh(ctx context.Context) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/refresh", nil, &resp); err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	return &resp, nil
}

// Health probes the liveness endpoint. Anything but 200 is an error.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("client.Health: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client.Health: %w", err)
	}
	defer resp.Body.Close()                               //nolint:errcheck // best-effort close
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck // drain for keep-alive
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client.Health: %w", &HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)})
	}
	return nil
}

// --- Listener ---

// StartListener asks the backend to bind a listener for profile.
// It returns the backend's success flag.
func (c *Client) StartListener(ctx context.Context, profile domain.ListenerProfile) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	body := map[string]domain.ListenerProfile{"profile": profile}
	if err := c.post(ctx, "/api/profile/start", body, &resp); err != nil {
		return false, fmt.Errorf("client.StartListener: %w", err)
	}
	return resp.Success, nil
}

// StopListener stops the listener bound for profileID.
func (c *Client) StopListener(ctx context.Context, profileID string) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	body := map[string]string{"profileId": profileID}
	if err := c.post(ctx, "/api/profile/stop", body, &resp); err != nil {
		return false, fmt.Errorf("client.StopListener: %w", err)
	}
	return resp.Success, nil
}

// ListenerStatus returns the current listener state.
func (c *Client) ListenerStatus(ctx context.Context) (*domain.ListenerStatus, error) {
	var st domain.ListenerStatus
	if err := c.get(ctx, "/api/profile/status", &st); err != nil {
		return nil, fmt.Errorf("client.ListenerStatus: %w", err)
	}
	return &st, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		// The backend writes most errors with http.Error, i.e. plain text.
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}
