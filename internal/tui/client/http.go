package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/ws"
)

// HTTPClient makes REST calls to the swarmwatch server.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient targets baseURL, e.g. "http://127.0.0.1:8080".
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RequestErrorMsg reports a failed REST call.
type RequestErrorMsg struct {
	Op  string
	Err error
}

// HealthMsg delivers /api/health.
type HealthMsg struct{ Health ws.HealthPayload }

// Session fetches /api/session.
func (c *HTTPClient) Session(ctx context.Context) (*session.Snapshot, error) {
	var s session.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Start sends POST /api/session/start.
func (c *HTTPClient) Start(ctx context.Context, identifier string) (*session.Snapshot, error) {
	var s session.Snapshot
	body := ws.StartRequest{Identifier: identifier}
	if err := c.do(ctx, http.MethodPost, "/api/session/start", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Stop sends POST /api/session/stop.
func (c *HTTPClient) Stop(ctx context.Context) (*session.Snapshot, error) {
	var s session.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/session/stop", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health fetches /api/health.
func (c *HTTPClient) Health(ctx context.Context) (*ws.HealthPayload, error) {
	var h ws.HealthPayload
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// StartCmd, StopCmd, ResyncCmd and HealthCmd wrap the calls as commands.

func (c *HTTPClient) StartCmd(ctx context.Context, identifier string) tea.Cmd {
	return func() tea.Msg {
		s, err := c.Start(ctx, identifier)
		if err != nil {
			return RequestErrorMsg{Op: "start", Err: err}
		}
		return SnapshotMsg{Snapshot: s.Clone()}
	}
}

func (c *HTTPClient) StopCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		s, err := c.Stop(ctx)
		if err != nil {
			return RequestErrorMsg{Op: "stop", Err: err}
		}
		return SnapshotMsg{Snapshot: s.Clone()}
	}
}

func (c *HTTPClient) ResyncCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		s, err := c.Session(ctx)
		if err != nil {
			return RequestErrorMsg{Op: "resync", Err: err}
		}
		return SnapshotMsg{Snapshot: s.Clone()}
	}
}

func (c *HTTPClient) HealthCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		h, err := c.Health(ctx)
		if err != nil {
			return RequestErrorMsg{Op: "health", Err: err}
		}
		return HealthMsg{Health: *h}
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// DeriveHTTPBase converts ws://host:port/ws to http://host:port.
func DeriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
