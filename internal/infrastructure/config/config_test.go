package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
api:
  host: "127.0.0.1"
  port: 8000
devices:
  request_timeout: 3
  registry:
    - id: living_room_light
      name: Living Room Light
      class: light
      protocol: tapo
      address_source: TAPO_LIVING_ROOM_LIGHT_IP
    - id: main_outlet
      name: Smart Plug (Tapo)
      class: outlet
      protocol: tapo
      address_source: TAPO_MAIN_OUTLET_IP
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if len(cfg.Devices.Registry) != 2 {
		t.Fatalf("len(Devices.Registry) = %d, want 2", len(cfg.Devices.Registry))
	}
	if cfg.Devices.Registry[0].ID != "living_room_light" {
		t.Errorf("first device = %q, want living_room_light (order must be preserved)", cfg.Devices.Registry[0].ID)
	}
	if cfg.Devices.Registry[1].AddressSource != "TAPO_MAIN_OUTLET_IP" {
		t.Errorf("AddressSource = %q", cfg.Devices.Registry[1].AddressSource)
	}
	if got := cfg.Devices.RequestTimeoutDuration(); got != 3*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v, want 3s", got)
	}
	// Unset values keep their defaults
	if cfg.Devices.ConnectTimeout != 10 {
		t.Errorf("ConnectTimeout = %d, want default 10", cfg.Devices.ConnectTimeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "site:\n  id: home\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 8000 {
		t.Errorf("API.Port = %d, want 8000", cfg.API.Port)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB should be disabled by default")
	}
	if !cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Metrics.Path != "/metrics" {
		t.Errorf("Telemetry.Metrics = %+v, want enabled on /metrics", cfg.Telemetry.Metrics)
	}
	if len(cfg.API.CORS.AllowedOrigins) != 1 || cfg.API.CORS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.API.CORS.AllowedOrigins)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: home
protocols:
  tapo:
    username: "file-user"
`)

	t.Setenv("HOMIFY_TAPO_USERNAME", "env-user@example.com")
	t.Setenv("HOMIFY_TAPO_PASSWORD", "env-secret")
	t.Setenv("HOMIFY_DATABASE_PATH", "/var/lib/homify/homify.db")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Protocols.Tapo.Username != "env-user@example.com" {
		t.Errorf("Tapo.Username = %q, want env override", cfg.Protocols.Tapo.Username)
	}
	if cfg.Protocols.Tapo.Password != "env-secret" {
		t.Errorf("Tapo.Password = %q, want env override", cfg.Protocols.Tapo.Password)
	}
	if cfg.Database.Path != "/var/lib/homify/homify.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Devices.Registry = []DeviceConfig{
			{ID: "a", Name: "A", Class: "light", Protocol: "tapo", AddressSource: "A_IP"},
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "invalid QoS ignored when mqtt disabled",
			mutate: func(c *Config) {
				c.MQTT.QoS = 3
			},
		},
		{
			name: "invalid QoS when mqtt enabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: "influxdb.url",
		},
		{
			name:    "zero parallelism",
			mutate:  func(c *Config) { c.Devices.Parallelism = 0 },
			wantErr: "parallelism",
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices.Registry = append(c.Devices.Registry, c.Devices.Registry[0])
			},
			wantErr: "duplicate id",
		},
		{
			name: "device without protocol",
			mutate: func(c *Config) {
				c.Devices.Registry[0].Protocol = ""
			},
			wantErr: "protocol is required",
		},
		{
			name: "device without address source is accepted",
			mutate: func(c *Config) {
				c.Devices.Registry[0].AddressSource = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_TimeoutGetters(t *testing.T) {
	cfg := APIConfig{
		Timeouts: APITimeoutConfig{Read: 30, Write: 60, Idle: 120},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 60*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 120*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 120s", got)
	}
}
