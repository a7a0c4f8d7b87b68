package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override, e.g. BRIDGE_SERVER_PORT
const EnvPrefix = "BRIDGE_"

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Simulator SimulatorConfig `toml:"simulator"` // FSUIPC WebSocket server connection
	Server    ServerConfig    `toml:"server"`    // Consumer-facing WebSocket/HTTP listener
	Brakes    BrakesConfig    `toml:"brakes"`    // Derived brake indicator policy
	Logging   LoggingConfig   `toml:"logging"`   // Application logging settings
	Journal   JournalConfig   `toml:"journal"`   // Command journal persistence
	Checks    ChecksConfig    `toml:"checks"`    // Optional data sanity checks
}

// SimulatorConfig contains the FSUIPC WebSocket client settings
type SimulatorConfig struct {
	URL                string `toml:"url"`                  // FSUIPC WebSocket server URL (e.g., ws://localhost:2048/fsuipc/)
	IntervalMs         int    `toml:"interval_ms"`          // Offset read interval requested from the simulator
	RetryDelayMs       int    `toml:"retry_delay_ms"`       // Fixed delay between reconnect attempts
	HandshakeTimeoutMs int    `toml:"handshake_timeout_ms"` // WebSocket opening handshake timeout
	GroupName          string `toml:"group_name"`           // Name of the declared offset group
}

// ServerConfig contains the consumer listener settings
type ServerConfig struct {
	Host             string `toml:"host"`                  // Host address to bind to (0.0.0.0 for all interfaces)
	Port             int    `toml:"port"`                  // Listener port
	Path             string `toml:"path"`                  // WebSocket path; the same path with a trailing slash and "/" are also accepted
	SendIntervalMs   int    `toml:"send_interval_ms"`      // Snapshot broadcast period
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the request headers (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	ShutdownTimeoutS int    `toml:"shutdown_timeout_secs"` // Graceful shutdown deadline
}

// BrakesConfig controls the derived systems.brakes_on value
type BrakesConfig struct {
	IncludeParking bool `toml:"include_parking"` // OR the parking brake into brakes_on
}

// LoggingConfig contains application logging settings
type LoggingConfig struct {
	Level         string `toml:"level"`          // Log level: "debug", "info", "warn", or "error"
	Format        string `toml:"format"`         // Log format: "json" (structured) or "console" (human-readable)
	DebugMessages bool   `toml:"debug_messages"` // Log every simulator frame at debug level
	File          string `toml:"file"`           // Optional rotating log file
	MaxSizeMB     int    `toml:"max_size_mb"`    // Rotate after this many megabytes
	MaxBackups    int    `toml:"max_backups"`    // Rotated files to keep
	MaxAgeDays    int    `toml:"max_age_days"`   // Days to keep rotated files
}

// JournalConfig contains the command journal settings
type JournalConfig struct {
	Enabled        bool   `toml:"enabled"`         // Record every consumer write command
	Path           string `toml:"path"`            // SQLite database file
	RetentionHours int    `toml:"retention_hours"` // Prune older commands at startup (0 = keep forever)
}

// ChecksConfig contains optional sanity checks on simulator data
type ChecksConfig struct {
	MagVarEnabled      bool    `toml:"magvar_enabled"`       // Compare simulator magnetic variation with the WMM
	MagVarToleranceDeg float64 `toml:"magvar_tolerance_deg"` // Warn above this difference
	MagVarIntervalSecs int     `toml:"magvar_interval_secs"` // Minimum time between comparisons
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			URL:                "ws://localhost:2048/fsuipc/",
			IntervalMs:         250,
			RetryDelayMs:       2000,
			HandshakeTimeoutMs: 4000,
			GroupName:          "flightData",
		},
		Server: ServerConfig{
			Host:             "localhost",
			Port:             2992,
			Path:             "/api/v1",
			SendIntervalMs:   250,
			ReadTimeoutSecs:  10,
			IdleTimeoutSecs:  120,
			ShutdownTimeoutS: 5,
		},
		Brakes: BrakesConfig{
			IncludeParking: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Journal: JournalConfig{
			Path:           "data/commands.db",
			RetentionHours: 24 * 7,
		},
		Checks: ChecksConfig{
			MagVarToleranceDeg: 2,
			MagVarIntervalSecs: 60,
		},
	}
}

// Load loads the configuration from the specified file path on top of the
// built-in defaults
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in
// order of preference. When no file exists the built-in defaults are used.
// A .env file, if present, and BRIDGE_* environment variables are applied last.
func LoadWithFallback(preferredPath string) (*Config, string, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var config *Config
	source := "defaults"
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err != nil {
			if path == preferredPath {
				return nil, "", fmt.Errorf("config file not found: %s", path)
			}
			continue
		}
		loaded, err := Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		config = loaded
		source = path
		break
	}
	if config == nil {
		config = Default()
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, "", err
	}

	return config, source, nil
}

// ApplyEnv overrides fields from BRIDGE_<SECTION>_<KEY> variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SIMULATOR_URL":        &c.Simulator.URL,
		"SIMULATOR_GROUP_NAME": &c.Simulator.GroupName,
		"SERVER_HOST":          &c.Server.Host,
		"SERVER_PATH":          &c.Server.Path,
		"LOGGING_LEVEL":        &c.Logging.Level,
		"LOGGING_FORMAT":       &c.Logging.Format,
		"LOGGING_FILE":         &c.Logging.File,
		"JOURNAL_PATH":         &c.Journal.Path,
	}
	ints := map[string]*int{
		"SIMULATOR_INTERVAL_MS":          &c.Simulator.IntervalMs,
		"SIMULATOR_RETRY_DELAY_MS":       &c.Simulator.RetryDelayMs,
		"SIMULATOR_HANDSHAKE_TIMEOUT_MS": &c.Simulator.HandshakeTimeoutMs,
		"SERVER_PORT":                    &c.Server.Port,
		"SERVER_SEND_INTERVAL_MS":        &c.Server.SendIntervalMs,
		"JOURNAL_RETENTION_HOURS":        &c.Journal.RetentionHours,
	}
	bools := map[string]*bool{
		"BRAKES_INCLUDE_PARKING": &c.Brakes.IncludeParking,
		"LOGGING_DEBUG_MESSAGES": &c.Logging.DebugMessages,
		"JOURNAL_ENABLED":        &c.Journal.Enabled,
		"CHECKS_MAGVAR_ENABLED":  &c.Checks.MagVarEnabled,
	}

	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate simulator config
	u, err := url.Parse(c.Simulator.URL)
	if err != nil {
		return fmt.Errorf("invalid simulator url %q: %w", c.Simulator.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid simulator url %q: scheme must be ws or wss", c.Simulator.URL)
	}
	if c.Simulator.IntervalMs <= 0 {
		return fmt.Errorf("invalid simulator interval_ms: %d (must be > 0)", c.Simulator.IntervalMs)
	}
	if c.Simulator.RetryDelayMs <= 0 {
		return fmt.Errorf("invalid simulator retry_delay_ms: %d (must be > 0)", c.Simulator.RetryDelayMs)
	}
	if c.Simulator.HandshakeTimeoutMs <= 0 {
		return fmt.Errorf("invalid simulator handshake_timeout_ms: %d (must be > 0)", c.Simulator.HandshakeTimeoutMs)
	}
	if c.Simulator.GroupName == "" {
		return fmt.Errorf("simulator group_name must not be empty")
	}

	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Path != "" && !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("invalid server path %q: must start with /", c.Server.Path)
	}
	if c.Server.SendIntervalMs <= 0 {
		return fmt.Errorf("invalid server send_interval_ms: %d (must be > 0)", c.Server.SendIntervalMs)
	}

	// Validate logging config
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	// Validate journal config
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path must be set when the journal is enabled")
	}
	if c.Journal.RetentionHours < 0 {
		return fmt.Errorf("invalid journal retention_hours: %d (must be >= 0)", c.Journal.RetentionHours)
	}

	// Validate checks config
	if c.Checks.MagVarEnabled && c.Checks.MagVarToleranceDeg <= 0 {
		return fmt.Errorf("invalid magvar_tolerance_deg: %v (must be > 0)", c.Checks.MagVarToleranceDeg)
	}

	return nil
}

// Addr returns the listener address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SendInterval returns the broadcast period
func (s ServerConfig) SendInterval() time.Duration {
	return time.Duration(s.SendIntervalMs) * time.Millisecond
}

// Interval returns the requested read interval
func (s SimulatorConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// RetryDelay returns the reconnect delay
func (s SimulatorConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

// HandshakeTimeout returns the WebSocket opening handshake timeout
func (s SimulatorConfig) HandshakeTimeout() time.Duration {
	return time.Duration(s.HandshakeTimeoutMs) * time.Millisecond
}

// Retention returns how long journaled commands are kept, 0 meaning forever
func (j JournalConfig) Retention() time.Duration {
	return time.Duration(j.RetentionHours) * time.Hour
}
