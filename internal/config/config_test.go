package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROOMLINK_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":42069", cfg.Coordinator.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.Coordinator.ProbeTimeout)
	assert.Equal(t, time.Hour, cfg.Coordinator.RecencyWindow)
	assert.Equal(t, time.Duration(0), cfg.Coordinator.PendingTTL)
	assert.Equal(t, 42096, cfg.Worker.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Worker.RegisterInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roomlink.yaml")
	content := `
log_level: debug
coordinator:
  http_addr: ":9000"
  probe_timeout: 2s
  pending_ttl: 15m
worker:
  name: Small Room
  http_port: 9100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ROOMLINK_CONFIG", path)
	t.Setenv("WORKER_HTTP_PORT", "9200")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Coordinator.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.Coordinator.ProbeTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Coordinator.PendingTTL)
	assert.Equal(t, "Small Room", cfg.Worker.Name)
	assert.Equal(t, 9200, cfg.Worker.HTTPPort)
	assert.NoError(t, cfg.ValidateWorker())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("ROOMLINK_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero probe timeout", mutate: func(c *Config) { c.Coordinator.ProbeTimeout = 0 }},
		{name: "sweep shorter than probe", mutate: func(c *Config) { c.Coordinator.SweepTimeout = time.Second }},
		{name: "unknown transport", mutate: func(c *Config) { c.Coordinator.ForwardTransport = "carrier-pigeon" }},
		{name: "nats without url", mutate: func(c *Config) { c.Coordinator.ForwardTransport = "nats" }},
		{name: "negative pending ttl", mutate: func(c *Config) { c.Coordinator.PendingTTL = -time.Second }},
		{name: "bad worker port", mutate: func(c *Config) { c.Worker.HTTPPort = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestValidateWorker_RequiresName(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateWorker())
}

func TestZoomEnabled(t *testing.T) {
	assert.False(t, ZoomConfig{}.Enabled())
	assert.True(t, ZoomConfig{AccountID: "a", ClientID: "b", ClientSecret: "c"}.Enabled())
}
