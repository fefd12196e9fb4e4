package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the coordinator and worker binaries
type Config struct {
	LogLevel string `yaml:"log_level"`
	NATSURL  string `yaml:"nats_url"`

	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Worker      WorkerConfig      `yaml:"worker"`
	Slack       SlackConfig       `yaml:"slack"`
	Zoom        ZoomConfig        `yaml:"zoom"`
}

// CoordinatorConfig holds coordinator-only settings
type CoordinatorConfig struct {
	HTTPAddr         string        `yaml:"http_addr"`
	LocalRoomName    string        `yaml:"local_room_name"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	ProbeConcurrency int           `yaml:"probe_concurrency"`
	SweepTimeout     time.Duration `yaml:"sweep_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	ForwardTimeout   time.Duration `yaml:"forward_timeout"`
	ForwardTransport string        `yaml:"forward_transport"`
	RecencyWindow    time.Duration `yaml:"recency_window"`
	RecencyCapacity  int           `yaml:"recency_capacity"`
	PendingTTL       time.Duration `yaml:"pending_ttl"`
	PendingCapacity  int           `yaml:"pending_capacity"`
}

// WorkerConfig holds worker-only settings
type WorkerConfig struct {
	Name             string        `yaml:"name"`
	HTTPPort         int           `yaml:"http_port"`
	AdvertiseAddr    string        `yaml:"advertise_addr"`
	CoordinatorURL   string        `yaml:"coordinator_url"`
	RegisterInterval time.Duration `yaml:"register_interval"`
}

// SlackConfig holds chat platform credentials
type SlackConfig struct {
	Token string `yaml:"token"`
}

// ZoomConfig holds conferencing provider credentials
type ZoomConfig struct {
	AccountID    string `yaml:"account_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserIndex    int    `yaml:"user_index"`
}

// Enabled reports whether meeting creation credentials are present
func (z ZoomConfig) Enabled() bool {
	return z.AccountID != "" && z.ClientID != "" && z.ClientSecret != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Coordinator: CoordinatorConfig{
			HTTPAddr:         ":42069",
			LocalRoomName:    "Main Room",
			ProbeTimeout:     3 * time.Second,
			ProbeConcurrency: 8,
			SweepTimeout:     10 * time.Second,
			ForwardTimeout:   10 * time.Second,
			ForwardTransport: "http",
			RecencyWindow:    time.Hour,
			RecencyCapacity:  1024,
			PendingCapacity:  256,
		},
		Worker: WorkerConfig{
			HTTPPort:         42096,
			CoordinatorURL:   "http://localhost:42069",
			RegisterInterval: 60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// ROOMLINK_CONFIG, and environment variables, in that order of precedence
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ROOMLINK_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.NATSURL = getEnv("ROOMLINK_NATS_URL", c.NATSURL)

	co := &c.Coordinator
	co.HTTPAddr = getEnv("COORDINATOR_HTTP_ADDR", co.HTTPAddr)
	co.LocalRoomName = getEnv("COORDINATOR_LOCAL_ROOM_NAME", co.LocalRoomName)
	co.ProbeTimeout = getDurationEnv("COORDINATOR_PROBE_TIMEOUT_SEC", co.ProbeTimeout)
	co.ProbeConcurrency = getIntEnv("COORDINATOR_PROBE_CONCURRENCY", co.ProbeConcurrency)
	co.SweepTimeout = getDurationEnv("COORDINATOR_SWEEP_TIMEOUT_SEC", co.SweepTimeout)
	co.SweepInterval = getDurationEnv("COORDINATOR_SWEEP_INTERVAL_SEC", co.SweepInterval)
	co.ForwardTimeout = getDurationEnv("COORDINATOR_FORWARD_TIMEOUT_SEC", co.ForwardTimeout)
	co.ForwardTransport = getEnv("COORDINATOR_FORWARD_TRANSPORT", co.ForwardTransport)
	co.RecencyWindow = getDurationEnv("COORDINATOR_RECENCY_WINDOW_SEC", co.RecencyWindow)
	co.RecencyCapacity = getIntEnv("COORDINATOR_RECENCY_CAPACITY", co.RecencyCapacity)
	co.PendingTTL = getDurationEnv("COORDINATOR_PENDING_TTL_SEC", co.PendingTTL)
	co.PendingCapacity = getIntEnv("COORDINATOR_PENDING_CAPACITY", co.PendingCapacity)

	w := &c.Worker
	w.Name = getEnv("WORKER_NAME", w.Name)
	w.HTTPPort = getIntEnv("WORKER_HTTP_PORT", w.HTTPPort)
	w.AdvertiseAddr = getEnv("WORKER_ADVERTISE_ADDR", w.AdvertiseAddr)
	w.CoordinatorURL = getEnv("WORKER_COORDINATOR_URL", w.CoordinatorURL)
	w.RegisterInterval = getDurationEnv("WORKER_REGISTER_INTERVAL_SEC", w.RegisterInterval)

	c.Slack.Token = getEnv("SLACK_TOKEN", c.Slack.Token)

	c.Zoom.AccountID = getEnv("ZOOM_ACCOUNT_ID", c.Zoom.AccountID)
	c.Zoom.ClientID = getEnv("ZOOM_CLIENT_ID", c.Zoom.ClientID)
	c.Zoom.ClientSecret = getEnv("ZOOM_CLIENT_SECRET", c.Zoom.ClientSecret)
	c.Zoom.UserIndex = getIntEnv("ZOOM_USER_INDEX", c.Zoom.UserIndex)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	co := c.Coordinator
	if co.HTTPAddr == "" {
		return fmt.Errorf("coordinator http_addr cannot be empty")
	}
	if co.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if co.ProbeConcurrency <= 0 {
		return fmt.Errorf("probe_concurrency must be positive")
	}
	if co.SweepTimeout < co.ProbeTimeout {
		return fmt.Errorf("sweep_timeout must be at least probe_timeout")
	}
	if co.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval cannot be negative")
	}
	if co.ForwardTimeout <= 0 {
		return fmt.Errorf("forward_timeout must be positive")
	}
	switch co.ForwardTransport {
	case "http":
	case "nats":
		if c.NATSURL == "" {
			return fmt.Errorf("forward_transport nats requires nats_url")
		}
	default:
		return fmt.Errorf("unknown forward_transport %q", co.ForwardTransport)
	}
	if co.RecencyWindow <= 0 {
		return fmt.Errorf("recency_window must be positive")
	}
	if co.RecencyCapacity <= 0 {
		return fmt.Errorf("recency_capacity must be positive")
	}
	if co.PendingTTL < 0 {
		return fmt.Errorf("pending_ttl cannot be negative")
	}
	if co.PendingCapacity <= 0 {
		return fmt.Errorf("pending_capacity must be positive")
	}

	w := c.Worker
	if w.HTTPPort <= 0 || w.HTTPPort > 65535 {
		return fmt.Errorf("worker http_port out of range: %d", w.HTTPPort)
	}
	if w.RegisterInterval <= 0 {
		return fmt.Errorf("register_interval must be positive")
	}
	return nil
}

// ValidateWorker checks the settings a worker needs beyond the shared ones
func (c *Config) ValidateWorker() error {
	if c.Worker.Name == "" {
		return fmt.Errorf("worker name cannot be empty")
	}
	if c.Worker.CoordinatorURL == "" {
		return fmt.Errorf("coordinator_url cannot be empty")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable with a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv reads a whole number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
