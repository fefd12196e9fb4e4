package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger provides structured logging with roomlink event helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger for the named service
func NewLogger(service, level string) *Logger {
	var output io.Writer = os.Stdout
	addSource := true

	// systemd captures stderr for the journal and records the source itself
	if isSystemd() {
		output = os.Stderr
		addSource = false
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: addSource,
	})

	return &Logger{Logger: slog.New(handler).With("service", service)}
}

// Wrap adapts an existing slog logger
func Wrap(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{Logger: l}
}

// Discard returns a logger that drops everything, used by tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel parses a log level string
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isSystemd() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("NOTIFY_SOCKET") != ""
}

// LogRegistryEvent logs room registry events
func (l *Logger) LogRegistryEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)

	switch event {
	case "room_registered":
		l.Info("Room registered", args...)
	case "room_refreshed":
		l.Debug("Room registration refreshed", args...)
	case "room_removed":
		l.Info("Room removed", args...)
	case "registration_rejected":
		l.Warn("Registration rejected", args...)
	default:
		l.Info("Registry event", args...)
	}
}

// LogProbeEvent logs liveness probe events
func (l *Logger) LogProbeEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)

	switch event {
	case "sweep_started":
		l.Debug("Liveness sweep started", args...)
	case "sweep_completed":
		l.Info("Liveness sweep completed", args...)
	case "probe_failed":
		l.Warn("Liveness probe failed", args...)
	default:
		l.Debug("Probe event", args...)
	}
}

// LogDispatchEvent logs selection and dispatch events
func (l *Logger) LogDispatchEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)

	switch event {
	case "proposal_created":
		l.Info("Selection proposed", args...)
	case "dispatch_local":
		l.Info("Dispatching locally", args...)
	case "dispatch_remote":
		l.Info("Forwarding to room", args...)
	case "forward_failed":
		l.Error("Forwarding failed", args...)
	case "local_failed":
		l.Error("Local execution failed", args...)
	case "selection_stale":
		l.Warn("Selection target unavailable", args...)
	case "selection_invalid":
		l.Warn("Selection rejected", args...)
	default:
		l.Info("Dispatch event", args...)
	}
}

// LogSystemEvent logs process lifecycle events
func (l *Logger) LogSystemEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)

	switch event {
	case "service_started":
		l.Info("Service started", args...)
	case "service_stopped":
		l.Info("Service stopped", args...)
	case "config_loaded":
		l.Info("Configuration loaded", args...)
	case "http_server_started":
		l.Info("HTTP server started", args...)
	case "nats_connected":
		l.Info("NATS connected", args...)
	case "nats_disconnected":
		l.Warn("NATS disconnected", args...)
	default:
		l.Info("System event", args...)
	}
}

// WithComponent creates a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}
