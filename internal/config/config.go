package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the system-wide settings tree, built from defaults,
// environment overrides, or an optional YAML file with file > env >
// defaults precedence (see LoadConfigWithPrecedence for how they combine).
type Config struct {
	Database  *DatabaseConfig  `yaml:"database"`
	HTTP      *HTTPConfig      `yaml:"http"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Session   *SessionConfig   `yaml:"session"`
	Speech    *SpeechConfig    `yaml:"speech"`
}

// DatabaseConfig supports the SQLite store's connection behavior. Timeout
// becomes the pool's connection max lifetime (a third of it the max idle
// time); the SQLite busy timeout is fixed by the store, not set here.
type DatabaseConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPConfig balances performance and reliability for the diagnostics and
// upgrade surface.
type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Host         string        `yaml:"host"`
}

// WebSocketConfig holds the per-connection transport settings (spec.md §5).
// Only ReadTimeout is consumed, as the health monitor's stale threshold;
// the connection handler's ping interval, read wait and write buffer are
// fixed constants in internal/websocket and do not read these fields.
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// SessionConfig holds the classroom-code lifetime, health sweep cadence,
// and post-disconnect drain grace (spec.md §6).
type SessionConfig struct {
	ClassroomCodeExpiration      time.Duration `yaml:"classroom_code_expiration"`
	ClassroomCodeCleanupInterval time.Duration `yaml:"classroom_code_cleanup_interval"`
	HealthCheckInterval          time.Duration `yaml:"health_check_interval"`
	StudentDrainGrace            time.Duration `yaml:"student_drain_grace"`
}

// SpeechConfig selects and configures the default SpeechPipeline adapter.
type SpeechConfig struct {
	Provider    string        `yaml:"provider"` // "gemini" or "openai"
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultConfig returns production-ready defaults based on classroom-scale
// requirements: local SQLite file, standard HTTP port, 30s WebSocket
// heartbeat, two-hour classroom codes, two-minute drain grace.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/relay.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Session: &SessionConfig{
			ClassroomCodeExpiration:      2 * time.Hour,
			ClassroomCodeCleanupInterval: 15 * time.Minute,
			HealthCheckInterval:          30 * time.Second,
			StudentDrainGrace:            2 * time.Minute,
		},
		Speech: &SpeechConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			CallTimeout: 10 * time.Second,
		},
	}
}

// Validate rejects configurations that would cause runtime failures rather
// than letting them surface mid-session.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.ClassroomCodeExpiration <= 0 {
		return fmt.Errorf("classroom code expiration must be positive")
	}
	if c.Session.ClassroomCodeCleanupInterval <= 0 {
		return fmt.Errorf("classroom code cleanup interval must be positive")
	}
	if c.Session.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}
	if c.Session.StudentDrainGrace <= 0 {
		return fmt.Errorf("student drain grace must be positive")
	}

	if c.Speech == nil {
		return fmt.Errorf("speech configuration is required")
	}
	if c.Speech.Provider != "gemini" && c.Speech.Provider != "openai" {
		return fmt.Errorf("speech provider must be \"gemini\" or \"openai\"")
	}
	if c.Speech.CallTimeout <= 0 {
		return fmt.Errorf("speech call timeout must be positive")
	}

	return nil
}

// LoadFromEnv starts from defaults and overrides whatever RELAY_* variables
// are set, falling back to the default on any parse failure.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("RELAY_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}

	if host := os.Getenv("RELAY_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}

	if dbPath := os.Getenv("RELAY_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if readTimeout := os.Getenv("RELAY_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("RELAY_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if dbTimeout := os.Getenv("RELAY_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}

	if pingInterval := os.Getenv("RELAY_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}

	if wsReadTimeout := os.Getenv("RELAY_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}

	if wsWriteTimeout := os.Getenv("RELAY_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}

	if bufferSize := os.Getenv("RELAY_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}

	if codeExp := os.Getenv("RELAY_SESSION_CLASSROOM_CODE_EXPIRATION"); codeExp != "" {
		if d, err := time.ParseDuration(codeExp); err == nil {
			config.Session.ClassroomCodeExpiration = d
		}
	}

	if cleanup := os.Getenv("RELAY_SESSION_CLASSROOM_CODE_CLEANUP_INTERVAL"); cleanup != "" {
		if d, err := time.ParseDuration(cleanup); err == nil {
			config.Session.ClassroomCodeCleanupInterval = d
		}
	}

	if healthInterval := os.Getenv("RELAY_SESSION_HEALTH_CHECK_INTERVAL"); healthInterval != "" {
		if d, err := time.ParseDuration(healthInterval); err == nil {
			config.Session.HealthCheckInterval = d
		}
	}

	if grace := os.Getenv("RELAY_SESSION_STUDENT_DRAIN_GRACE"); grace != "" {
		if d, err := time.ParseDuration(grace); err == nil {
			config.Session.StudentDrainGrace = d
		}
	}

	if provider := os.Getenv("RELAY_SPEECH_PROVIDER"); provider != "" {
		config.Speech.Provider = provider
	}

	if apiKey := os.Getenv("RELAY_SPEECH_API_KEY"); apiKey != "" {
		config.Speech.APIKey = apiKey
	}

	if model := os.Getenv("RELAY_SPEECH_MODEL"); model != "" {
		config.Speech.Model = model
	}

	if callTimeout := os.Getenv("RELAY_SPEECH_CALL_TIMEOUT"); callTimeout != "" {
		if d, err := time.ParseDuration(callTimeout); err == nil {
			config.Speech.CallTimeout = d
		}
	}

	return config
}

// LoadFromFile reads a YAML config file and layers it over the defaults.
// YAML replaces the teacher's JSON format because the nested
// session/speech sections benefit from comments when operators hand-edit
// deployment files.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence starts from the environment-derived config
// (itself layered over defaults). A file that loads successfully replaces
// that config as a whole: its values sit on the defaults only, and
// environment values are not applied beneath it. File errors are swallowed
// so environment/defaults still produce a usable config.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := DefaultConfig()

	envConfig := LoadFromEnv()
	if envConfig != nil {
		config = envConfig
	}

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
