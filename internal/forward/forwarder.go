// Package forward delivers commands from the coordinator to room workers.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
)

// ErrForwardFailed is returned when a worker could not be reached or rejected the command
var ErrForwardFailed = errors.New("forward failed")

// Forwarder sends a command to a remote room
type Forwarder interface {
	Forward(ctx context.Context, room model.RoomEntry, req model.ForwardRequest) (model.ForwardResponse, error)
}

// HTTPForwarder posts commands to a worker's /commands endpoint
type HTTPForwarder struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPForwarder creates an HTTP forwarder. Per-call deadlines come from
// the caller's context.
func NewHTTPForwarder(client *http.Client, logger *logging.Logger) *HTTPForwarder {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPForwarder{
		httpClient: client,
		logger:     logger.WithComponent("forwarder"),
	}
}

// Forward implements Forwarder
func (f *HTTPForwarder) Forward(ctx context.Context, room model.RoomEntry, fr model.ForwardRequest) (model.ForwardResponse, error) {
	url := model.WorkerURL(room.Address) + "/commands"

	body, err := json.Marshal(fr)
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("failed to marshal command: %w", err)
	}

	f.logger.Debug("Forwarding command", "room_id", room.ID, "url", url, "verb", fr.Verb)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("%w: failed to create request: %v", ErrForwardFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("%w: %v", ErrForwardFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("%w: failed to read response: %v", ErrForwardFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ForwardResponse{}, fmt.Errorf("%w: worker returned status %d: %s", ErrForwardFailed, resp.StatusCode, bytes.TrimSpace(data))
	}

	return decodeResponse(data)
}

// Requester is the subset of *nats.Conn used for request/reply
type Requester interface {
	RequestMsgWithContext(ctx context.Context, msg *nats.Msg) (*nats.Msg, error)
}

// NATSForwarder sends commands as NATS requests on the room's command subject
type NATSForwarder struct {
	conn   Requester
	logger *logging.Logger
}

// NewNATSForwarder creates a NATS forwarder
func NewNATSForwarder(conn Requester, logger *logging.Logger) *NATSForwarder {
	return &NATSForwarder{
		conn:   conn,
		logger: logger.WithComponent("forwarder"),
	}
}

// Forward implements Forwarder
func (f *NATSForwarder) Forward(ctx context.Context, room model.RoomEntry, fr model.ForwardRequest) (model.ForwardResponse, error) {
	body, err := json.Marshal(fr)
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("failed to marshal command: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-room-id", room.ID)
	headers.Set("x-verb", string(fr.Verb))

	msg := &nats.Msg{
		Subject: model.CommandSubject(room.ID),
		Data:    body,
		Header:  headers,
	}

	f.logger.Debug("Forwarding command", "room_id", room.ID, "subject", msg.Subject, "verb", fr.Verb)

	reply, err := f.conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("%w: %v", ErrForwardFailed, err)
	}

	return decodeResponse(reply.Data)
}

func decodeResponse(data []byte) (model.ForwardResponse, error) {
	// Older workers answer with a plain-text acknowledgement
	var resp model.ForwardResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return model.ForwardResponse{OK: true, Message: string(bytes.TrimSpace(data))}, nil
	}
	if !resp.OK {
		return resp, fmt.Errorf("%w: %s", ErrForwardFailed, resp.Message)
	}
	return resp, nil
}

// WithTimeout wraps a forwarder so every call is bounded by timeout
func WithTimeout(next Forwarder, timeout time.Duration) Forwarder {
	if timeout <= 0 {
		return next
	}
	return timeoutForwarder{next: next, timeout: timeout}
}

type timeoutForwarder struct {
	next    Forwarder
	timeout time.Duration
}

func (t timeoutForwarder) Forward(ctx context.Context, room model.RoomEntry, req model.ForwardRequest) (model.ForwardResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Forward(ctx, room, req)
}
