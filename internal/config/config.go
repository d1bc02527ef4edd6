package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the nxx configuration shared by every process role.
type Config struct {
	HTTP       HTTPConfig      `yaml:"http"`
	Database   DatabaseConfig  `yaml:"database"`
	Queue      QueueConfig     `yaml:"queue"`
	Websockets WebsocketConfig `yaml:"websockets"`
	Schemas    SchemaConfig    `yaml:"schemas"`
	Auth       AuthConfig      `yaml:"auth"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// QueueConfig holds queue names and consumer timing.
type QueueConfig struct {
	Fanout          string `yaml:"fanout"`
	TransportPrefix string `yaml:"transport_prefix"`
	BlockSec        int    `yaml:"block_sec"`
	RetryDelayMs    int    `yaml:"retry_delay_ms"`
	HeartbeatSec    int    `yaml:"heartbeat_sec"`
}

// WebsocketConfig holds WebSocket gateway settings.
type WebsocketConfig struct {
	Port            int    `yaml:"port"`
	Path            string `yaml:"path"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	BindingTTLSec   int    `yaml:"binding_ttl_sec"`
}

// SchemaConfig holds application schema cache settings.
type SchemaConfig struct {
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// Block returns the consumer block timeout.
func (q QueueConfig) Block() time.Duration { return time.Duration(q.BlockSec) * time.Second }

// RetryDelay returns the pause before a failed message is retried.
func (q QueueConfig) RetryDelay() time.Duration {
	return time.Duration(q.RetryDelayMs) * time.Millisecond
}

// Heartbeat returns how long a consumer counts as alive without refreshing its heartbeat.
func (q QueueConfig) Heartbeat() time.Duration { return time.Duration(q.HeartbeatSec) * time.Second }

// TransportQueue returns the queue name a transport worker consumes.
func (q QueueConfig) TransportQueue(workerID string) string {
	return q.TransportPrefix + workerID
}

// BindingTTL returns how long a device binding lives without a refresh.
func (w WebsocketConfig) BindingTTL() time.Duration {
	return time.Duration(w.BindingTTLSec) * time.Second
}

// WriteTimeout returns the per-frame write deadline.
func (w WebsocketConfig) WriteTimeout() time.Duration {
	return time.Duration(w.WriteTimeoutSec) * time.Second
}

// CacheTTL returns how long a loaded schema is served from memory.
func (s SchemaConfig) CacheTTL() time.Duration { return time.Duration(s.CacheTTLSec) * time.Second }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes a YAML document, substituting ${VAR} references, then applies defaults
// and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Queue.Fanout == "" {
		c.Queue.Fanout = "fanout"
	}
	if c.Queue.TransportPrefix == "" {
		c.Queue.TransportPrefix = "websockets-transport_"
	}
	if c.Queue.BlockSec <= 0 {
		c.Queue.BlockSec = 5
	}
	if c.Queue.RetryDelayMs <= 0 {
		c.Queue.RetryDelayMs = 500
	}
	if c.Queue.HeartbeatSec <= 0 {
		c.Queue.HeartbeatSec = 30
	}
	if c.Websockets.Port <= 0 {
		c.Websockets.Port = c.HTTP.Port
	}
	if c.Websockets.Path == "" {
		c.Websockets.Path = "/ws"
	}
	if c.Websockets.WriteTimeoutSec <= 0 {
		c.Websockets.WriteTimeoutSec = 10
	}
	if c.Websockets.BindingTTLSec <= 0 {
		c.Websockets.BindingTTLSec = 90
	}
	if c.Schemas.CacheTTLSec <= 0 {
		c.Schemas.CacheTTLSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Websockets.Port <= 0 || c.Websockets.Port > 65535 {
		return fmt.Errorf("websockets.port must be between 1 and 65535, got %d", c.Websockets.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if strings.Contains(c.Queue.Fanout, ":") {
		return fmt.Errorf("queue.fanout must not contain ':', got %q", c.Queue.Fanout)
	}
	if c.Queue.HeartbeatSec <= c.Queue.BlockSec {
		return fmt.Errorf("queue.heartbeat_sec (%d) must exceed queue.block_sec (%d)",
			c.Queue.HeartbeatSec, c.Queue.BlockSec)
	}
	if !strings.HasPrefix(c.Websockets.Path, "/") {
		return fmt.Errorf("websockets.path must start with \"/\", got %q", c.Websockets.Path)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
