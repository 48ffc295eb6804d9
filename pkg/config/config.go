package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	envConfigPath = "CHATAT_CONFIG"
	envChannels   = "TWITCH_CHANNELS"

	defaultServerHost      = "irc.chat.twitch.tv"
	defaultServerPort      = 6667
	defaultCredentialsFile = "twitch_auth.json"
	defaultGatewayHost     = "0.0.0.0"
	defaultGatewayPort     = 18790
	defaultHelixTimeout    = 10
	defaultMaxBatch        = 200
	defaultFlushEveryMS    = 1000
	defaultChanBuffer      = 4096
	defaultFlushTimeoutMS  = 5000
)

// Config is the root runtime configuration loaded from chatat.json.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Channels    []string          `json:"channels"`
	Credentials CredentialsConfig `json:"credentials"`
	Helix       HelixConfig       `json:"helix"`
	ChatLog     ChatLogConfig     `json:"chat_log"`
	Gateway     GatewayConfig     `json:"gateway"`
	Logging     LoggingConfig     `json:"logging,omitempty"`

	// dir is where the config file was found; relative paths resolve against it.
	dir string
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
	File      string `json:"file,omitempty"`
}

// ServerConfig is the chat server endpoint.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// CredentialsConfig points at the credentials JSON file.
type CredentialsConfig struct {
	File string `json:"file"`
}

// HelixConfig configures the Helix metadata client.
type HelixConfig struct {
	BaseURL               string `json:"base_url"`
	TokenURL              string `json:"token_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// RequestTimeout converts RequestTimeoutSeconds.
func (h HelixConfig) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutSeconds) * time.Second
}

// ChatLogConfig configures the optional Postgres chat log.
type ChatLogConfig struct {
	Enabled        bool   `json:"enabled"`
	DSN            string `json:"dsn"`
	MaxBatch       int    `json:"max_batch"`
	FlushEveryMS   int    `json:"flush_every_ms"`
	ChanBuffer     int    `json:"chan_buffer"`
	FlushTimeoutMS int    `json:"flush_timeout_ms"`
}

func (c ChatLogConfig) FlushEvery() time.Duration {
	return time.Duration(c.FlushEveryMS) * time.Millisecond
}

func (c ChatLogConfig) FlushTimeout() time.Duration {
	return time.Duration(c.FlushTimeoutMS) * time.Millisecond
}

// GatewayConfig configures HTTP gateway bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (g GatewayConfig) Addr() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads the config file at path, or the first one found by the
// usual lookup when path is empty, then applies defaults and environment
// overrides. A missing file is not an error unless it was asked for.
func LoadConfig(path string) (*Config, error) {
	configPath, err := findConfigPath(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.dir = filepath.Dir(configPath)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the sections that have no sensible fallback.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	var errs []error
	if strings.TrimSpace(c.Server.Host) == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d is out of range", c.Gateway.Port))
	}
	if c.ChatLog.Enabled && strings.TrimSpace(c.ChatLog.DSN) == "" {
		errs = append(errs, errors.New("chat_log.dsn is required when chat_log is enabled"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}

// CredentialsPath resolves credentials.file against the config directory.
func (c *Config) CredentialsPath() string {
	path := strings.TrimSpace(c.Credentials.File)
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}

	return filepath.Join(c.dir, path)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Host) == "" {
		cfg.Server.Host = defaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if strings.TrimSpace(cfg.Credentials.File) == "" {
		cfg.Credentials.File = defaultCredentialsFile
	}
	if cfg.Helix.RequestTimeoutSeconds <= 0 {
		cfg.Helix.RequestTimeoutSeconds = defaultHelixTimeout
	}
	if cfg.ChatLog.MaxBatch <= 0 {
		cfg.ChatLog.MaxBatch = defaultMaxBatch
	}
	if cfg.ChatLog.FlushEveryMS <= 0 {
		cfg.ChatLog.FlushEveryMS = defaultFlushEveryMS
	}
	if cfg.ChatLog.ChanBuffer <= 0 {
		cfg.ChatLog.ChanBuffer = defaultChanBuffer
	}
	if cfg.ChatLog.FlushTimeoutMS <= 0 {
		cfg.ChatLog.FlushTimeoutMS = defaultFlushTimeoutMS
	}
	if strings.TrimSpace(cfg.Gateway.Host) == "" {
		cfg.Gateway.Host = defaultGatewayHost
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = defaultGatewayPort
	}
	cfg.Channels = normalizeChannels(cfg.Channels)
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if raw := strings.TrimSpace(os.Getenv(envChannels)); raw != "" {
		cfg.Channels = normalizeChannels(parseCSV(raw))
	}
}

// normalizeChannels strips the # sigil and drops blanks and duplicates.
func normalizeChannels(names []string) []string {
	clean := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
		if name == "" || slices.Contains(clean, name) {
			continue
		}
		clean = append(clean, name)
	}

	return slices.Clip(clean)
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is the explicit path, then CHATAT_CONFIG, then cwd-local
// fallback paths. An empty result means no file exists and defaults apply.
func findConfigPath(explicit string) (string, error) {
	if value := strings.TrimSpace(explicit); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("config path does not point to a file: %s", value)
	}

	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "chatat.json"),
		filepath.Join(cwd, "config", "chatat.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
