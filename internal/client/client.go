// Package client talks to the coordinator HTTP API.
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

	"github.com/sgerhart/roomlink/internal/api"
	"github.com/sgerhart/roomlink/internal/model"
)

// StatusError is returned for non-2xx coordinator replies
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coordinator returned status %d: %s", e.StatusCode, e.Message)
}

// Client handles communication with the coordinator
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the coordinator at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Rooms lists the registered rooms
func (c *Client) Rooms(ctx context.Context) (api.RoomsResponse, error) {
	var resp api.RoomsResponse
	err := c.do(ctx, http.MethodGet, "/rooms", nil, &resp)
	return resp, err
}

// Propose starts a two-phase selection for verb
func (c *Client) Propose(ctx context.Context, verb model.Verb, payload, channel string) (model.Proposal, error) {
	var proposal model.Proposal
	err := c.do(ctx, http.MethodPost, "/commands/"+string(verb), api.CommandRequest{
		Payload: payload,
		Channel: channel,
	}, &proposal)
	return proposal, err
}

// Dispatch runs verb on room without a selection prompt
func (c *Client) Dispatch(ctx context.Context, verb model.Verb, payload, channel, room string) (model.Outcome, error) {
	var outcome model.Outcome
	err := c.do(ctx, http.MethodPost, "/commands/"+string(verb), api.CommandRequest{
		Payload: payload,
		Channel: channel,
		Room:    room,
	}, &outcome)
	return outcome, err
}

// Select resolves a pending proposal
func (c *Client) Select(ctx context.Context, correlation, token string) (model.Outcome, error) {
	var outcome model.Outcome
	err := c.do(ctx, http.MethodPost, "/selections", model.Selection{
		Correlation: correlation,
		Token:       token,
	}, &outcome)
	return outcome, err
}

// Remove drops a room from the registry
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(id), nil, nil)
}

// do sends body as JSON and decodes the reply into out. Outcome replies are
// decoded even on failure so callers can show the message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var reply struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &reply); err == nil {
		if reply.Error != "" {
			return reply.Error
		}
		if reply.Message != "" {
			return reply.Message
		}
	}
	return strings.TrimSpace(string(data))
}
