// Package systemd sends sd_notify state updates when running under systemd.
package systemd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// Notifier writes state lines to the NOTIFY_SOCKET datagram socket
type Notifier struct {
	mu     sync.Mutex
	socket string
	conn   net.Conn
}

// NewNotifier creates a notifier bound to NOTIFY_SOCKET
func NewNotifier() *Notifier {
	return NewNotifierWithSocket(os.Getenv("NOTIFY_SOCKET"))
}

// NewNotifierWithSocket creates a notifier for an explicit socket path.
// A leading '@' names an abstract socket.
func NewNotifierWithSocket(socket string) *Notifier {
	return &Notifier{socket: socket}
}

// IsAvailable reports whether a notify socket is configured
func (n *Notifier) IsAvailable() bool {
	return n.socket != ""
}

func (n *Notifier) send(state string) error {
	if !n.IsAvailable() {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		addr := n.socket
		if addr[0] == '@' {
			addr = "\x00" + addr[1:]
		}
		conn, err := net.Dial("unixgram", addr)
		if err != nil {
			return fmt.Errorf("failed to connect to systemd socket: %w", err)
		}
		n.conn = conn
	}

	if _, err := n.conn.Write([]byte(state + "\n")); err != nil {
		return fmt.Errorf("failed to notify systemd: %w", err)
	}
	return nil
}

// NotifyReady reports that startup finished
func (n *Notifier) NotifyReady() error {
	return n.send("READY=1")
}

// NotifyStopping reports that shutdown began
func (n *Notifier) NotifyStopping() error {
	return n.send("STOPPING=1")
}

// NotifyStatus sets the free-form status line
func (n *Notifier) NotifyStatus(status string) error {
	return n.send("STATUS=" + status)
}

// NotifyWatchdog pets the watchdog
func (n *Notifier) NotifyWatchdog() error {
	return n.send("WATCHDOG=1")
}

// WatchdogInterval returns half of WATCHDOG_USEC, or zero when the watchdog
// is not enabled
func WatchdogInterval() time.Duration {
	usec, err := strconv.ParseInt(os.Getenv("WATCHDOG_USEC"), 10, 64)
	if err != nil || usec <= 0 {
		return 0
	}
	return time.Duration(usec) * time.Microsecond / 2
}

// RunWatchdog pets the watchdog on every interval until ctx is done
func (n *Notifier) RunWatchdog(ctx context.Context, interval time.Duration) {
	if !n.IsAvailable() || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = n.NotifyWatchdog()
		}
	}
}

// Close releases the socket
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		err := n.conn.Close()
		n.conn = nil
		return err
	}
	return nil
}
