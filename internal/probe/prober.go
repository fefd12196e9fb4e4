// Package probe verifies that registered rooms are still reachable and drops
// the ones that are not.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/metrics"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/registry"
)

// ErrProbeFailed wraps every reason a room is considered dead
var ErrProbeFailed = errors.New("probe failed")

// Checker performs a single liveness check against a room
type Checker interface {
	Check(ctx context.Context, room model.RoomEntry) error
}

// HTTPChecker expects a 2xx from GET <room>/ping
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates an HTTP checker. Timeouts come from the context.
func NewHTTPChecker(client *http.Client) *HTTPChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPChecker{client: client}
}

// Check implements Checker
func (c *HTTPChecker) Check(ctx context.Context, room model.RoomEntry) error {
	url := model.WorkerURL(room.Address) + "/ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrProbeFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrProbeFailed, resp.StatusCode)
	}
	return nil
}

// Options bound a sweep
type Options struct {
	ProbeTimeout time.Duration
	SweepTimeout time.Duration
	Concurrency  int
}

// SweepResult reports what a sweep observed
type SweepResult struct {
	Alive     []string      `json:"alive"`
	Removed   []string      `json:"removed"`
	Unchecked []string      `json:"unchecked,omitempty"`
	Aborted   bool          `json:"aborted"`
	Duration  time.Duration `json:"duration"`
}

// Prober sweeps the registry
type Prober struct {
	registry *registry.Registry
	checker  Checker
	opts     Options
	logger   *logging.Logger
	metrics  *metrics.Metrics

	// one sweep at a time so overlapping callers do not double-probe
	sweepMu sync.Mutex
}

// NewProber creates a prober over reg
func NewProber(reg *registry.Registry, checker Checker, opts Options, logger *logging.Logger, m *metrics.Metrics) *Prober {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	if opts.SweepTimeout < opts.ProbeTimeout {
		opts.SweepTimeout = opts.ProbeTimeout
	}
	return &Prober{
		registry: reg,
		checker:  checker,
		opts:     opts,
		logger:   logger.WithComponent("prober"),
		metrics:  m,
	}
}

// Sweep probes every current entry and removes the failures in one batch
// after the whole pass. A room is dropped only when its own probe ran and
// failed. Rooms the sweep deadline cut off are reported as unchecked and
// kept, and so are rooms re-registered while the sweep was running. If ctx
// is cancelled by the caller nothing is removed.
func (p *Prober) Sweep(ctx context.Context) SweepResult {
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()

	start := time.Now()
	rooms := p.registry.List()
	p.logger.LogProbeEvent("sweep_started", "rooms", len(rooms))

	sweepCtx, cancel := context.WithTimeout(ctx, p.opts.SweepTimeout)
	defer cancel()
	sweepDeadline, _ := sweepCtx.Deadline()

	var (
		mu        sync.Mutex
		alive     []string
		unchecked []string
		failed    []model.RoomEntry
	)

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	for _, room := range rooms {
		g.Go(func() error {
			if sweepCtx.Err() != nil {
				mu.Lock()
				unchecked = append(unchecked, room.ID)
				mu.Unlock()
				return nil
			}

			probeDeadline := time.Now().Add(p.opts.ProbeTimeout)
			probeCtx, probeCancel := context.WithDeadline(sweepCtx, probeDeadline)
			defer probeCancel()

			err := p.checker.Check(probeCtx, room)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				alive = append(alive, room.ID)
			case sweepCtx.Err() != nil && sweepDeadline.Before(probeDeadline):
				// cut short by the sweep, not by its own timeout
				unchecked = append(unchecked, room.ID)
			default:
				failed = append(failed, room)
				p.metrics.ProbeFailuresTotal.Inc()
				p.logger.LogProbeEvent("probe_failed", "room_id", room.ID, "address", room.Address, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := SweepResult{Alive: alive, Unchecked: unchecked, Duration: time.Since(start)}
	sort.Strings(result.Alive)
	sort.Strings(result.Unchecked)

	if ctx.Err() != nil {
		result.Aborted = true
		p.logger.LogProbeEvent("sweep_aborted", "error", ctx.Err())
		return result
	}

	result.Removed = p.registry.RemoveStale(failed)
	sort.Strings(result.Removed)

	p.metrics.SweepsTotal.Inc()
	p.metrics.SweepDuration.Observe(result.Duration.Seconds())
	p.logger.LogProbeEvent("sweep_completed",
		"alive", len(result.Alive),
		"removed", len(result.Removed),
		"unchecked", len(result.Unchecked),
		"duration", result.Duration.String())

	return result
}

// Run sweeps on every tick of interval until ctx is done
func (p *Prober) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("Background sweeper started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Background sweeper stopped")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}
