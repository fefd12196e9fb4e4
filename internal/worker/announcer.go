package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
)

// Publisher is the subset of *nats.Conn used to broadcast announcements
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Announcer registers this room with the coordinator on a fixed interval
type Announcer struct {
	coordinatorURL string
	req            model.RegisterRequest
	interval       time.Duration
	httpClient     *http.Client
	publisher      Publisher
	logger         *logging.Logger
}

// NewAnnouncer creates an announcer for the room named name reachable at
// address. publisher may be nil.
func NewAnnouncer(coordinatorURL, name, address string, interval time.Duration, publisher Publisher, logger *logging.Logger) *Announcer {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	return &Announcer{
		coordinatorURL: strings.TrimRight(coordinatorURL, "/"),
		req: model.RegisterRequest{
			Name:    name,
			IP:      host,
			Address: address,
			ID:      model.RoomID(name),
		},
		interval:   interval,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		publisher:  publisher,
		logger:     logger.WithComponent("announcer"),
	}
}

// Registration returns the announced body
func (a *Announcer) Registration() model.RegisterRequest {
	return a.req
}

// Run announces immediately and then on every tick until ctx is done.
// Failures are logged and retried on the next tick.
func (a *Announcer) Run(ctx context.Context) {
	a.announceAndLog(ctx)

	if a.interval <= 0 {
		return
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Announcer stopped")
			return
		case <-ticker.C:
			a.announceAndLog(ctx)
		}
	}
}

func (a *Announcer) announceAndLog(ctx context.Context) {
	if err := a.Announce(ctx); err != nil {
		a.logger.Warn("Registration failed", "coordinator", a.coordinatorURL, "error", err)
		return
	}
	a.logger.Debug("Registered with coordinator", "id", a.req.ID, "address", a.req.Address)
}

// Announce sends one registration over HTTP, and over NATS when configured.
// It fails only when every configured channel fails.
func (a *Announcer) Announce(ctx context.Context) error {
	body, err := json.Marshal(a.req)
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	httpErr := a.post(ctx, body)

	if a.publisher != nil {
		if err := a.publisher.Publish(model.RegisterSubject, body); err != nil {
			if httpErr != nil {
				return fmt.Errorf("http: %v; nats: %w", httpErr, err)
			}
			a.logger.Warn("NATS announcement failed", "error", err)
			return nil
		}
		if httpErr != nil {
			a.logger.Debug("HTTP registration failed, announced over NATS", "error", httpErr)
		}
		return nil
	}

	return httpErr
}

func (a *Announcer) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.coordinatorURL+"/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("coordinator returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return nil
}

// AdvertiseAddress returns configured when set, otherwise the first
// non-loopback IPv4 address joined with port
func AdvertiseAddress(configured string, port int) (string, error) {
	if configured != "" {
		return configured, nil
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list interface addresses: %w", err)
	}

	ip := firstIPv4(addrs)
	if ip == "" {
		return "", fmt.Errorf("no non-loopback IPv4 address found")
	}
	return net.JoinHostPort(ip, strconv.Itoa(port)), nil
}

func firstIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
