package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig should not return nil")
	}
	if config.Database.Path == "" {
		t.Error("default database path should not be empty")
	}
	if config.HTTP.Port <= 0 {
		t.Error("default HTTP port should be positive")
	}
	if config.HTTP.ReadTimeout <= 0 {
		t.Error("default read timeout should be positive")
	}
	if config.Session.StudentDrainGrace != 2*time.Minute {
		t.Errorf("expected default drain grace of 2m, got %v", config.Session.StudentDrainGrace)
	}
	if config.Speech.Provider != "gemini" {
		t.Errorf("expected default speech provider gemini, got %q", config.Speech.Provider)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate cleanly: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"nil database", func(c *Config) { c.Database = nil }, true},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, true},
		{"negative http port", func(c *Config) { c.HTTP.Port = -1 }, true},
		{"http port too large", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"empty http host", func(c *Config) { c.HTTP.Host = "" }, true},
		{"nil websocket", func(c *Config) { c.WebSocket = nil }, true},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }, true},
		{"nil session", func(c *Config) { c.Session = nil }, true},
		{"zero code expiration", func(c *Config) { c.Session.ClassroomCodeExpiration = 0 }, true},
		{"zero drain grace", func(c *Config) { c.Session.StudentDrainGrace = 0 }, true},
		{"nil speech", func(c *Config) { c.Speech = nil }, true},
		{"unknown speech provider", func(c *Config) { c.Speech.Provider = "carrier-pigeon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	vars := map[string]string{
		"RELAY_HTTP_PORT":                 "9090",
		"RELAY_HTTP_HOST":                 "127.0.0.1",
		"RELAY_DATABASE_PATH":             "/tmp/custom.db",
		"RELAY_HTTP_READ_TIMEOUT":         "45s",
		"RELAY_SESSION_STUDENT_DRAIN_GRACE": "5m",
		"RELAY_SPEECH_PROVIDER":           "openai",
	}
	for k, v := range vars {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range vars {
			os.Unsetenv(k)
		}
	})

	config := LoadFromEnv()

	if config.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %q", config.HTTP.Host)
	}
	if config.Database.Path != "/tmp/custom.db" {
		t.Errorf("expected custom db path, got %q", config.Database.Path)
	}
	if config.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("expected 45s read timeout, got %v", config.HTTP.ReadTimeout)
	}
	if config.Session.StudentDrainGrace != 5*time.Minute {
		t.Errorf("expected 5m drain grace, got %v", config.Session.StudentDrainGrace)
	}
	if config.Speech.Provider != "openai" {
		t.Errorf("expected openai provider, got %q", config.Speech.Provider)
	}
}

func TestLoadFromEnv_IgnoresUnparseable(t *testing.T) {
	os.Setenv("RELAY_HTTP_PORT", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("RELAY_HTTP_PORT") })

	config := LoadFromEnv()
	if config.HTTP.Port != DefaultConfig().HTTP.Port {
		t.Errorf("unparseable env value should fall back to default, got %d", config.HTTP.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")

	contents := `
database:
  path: /data/classroom.db
  timeout: 15s
http:
  port: 9000
  host: 0.0.0.0
  read_timeout: 20s
  write_timeout: 20s
websocket:
  ping_interval: 20s
  read_timeout: 50s
  write_timeout: 8s
  buffer_size: 200
session:
  classroom_code_expiration: 1h
  classroom_code_cleanup_interval: 10m
  health_check_interval: 15s
  student_drain_grace: 90s
speech:
  provider: openai
  api_key: test-key
  model: gpt-4o-mini
  call_timeout: 8s
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile returned error: %v", err)
	}
	if config.HTTP.Port != 9000 {
		t.Errorf("expected port 9000, got %d", config.HTTP.Port)
	}
	if config.Session.StudentDrainGrace != 90*time.Second {
		t.Errorf("expected 90s drain grace, got %v", config.Session.StudentDrainGrace)
	}
	if config.Speech.Provider != "openai" || config.Speech.APIKey != "test-key" {
		t.Errorf("unexpected speech config: %+v", config.Speech)
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/relay.yaml"); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	os.Setenv("RELAY_HTTP_PORT", "7000")
	t.Cleanup(func() { os.Unsetenv("RELAY_HTTP_PORT") })

	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	contents := `
http:
  port: 8500
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 30s
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config := LoadConfigWithPrecedence(path)
	if config.HTTP.Port != 8500 {
		t.Errorf("file should take precedence over env, got port %d", config.HTTP.Port)
	}

	configNoFile := LoadConfigWithPrecedence("")
	if configNoFile.HTTP.Port != 7000 {
		t.Errorf("env should apply when no file given, got port %d", configNoFile.HTTP.Port)
	}

	configBadFile := LoadConfigWithPrecedence("/nonexistent/relay.yaml")
	if configBadFile.HTTP.Port != 7000 {
		t.Errorf("missing file should silently fall back to env, got port %d", configBadFile.HTTP.Port)
	}
}
