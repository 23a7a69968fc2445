package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/buffer"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/tlsutil"
)

// Config is the complete application configuration
type Config struct {
	Endpoint      EndpointConfig     `json:"endpoint" yaml:"endpoint"`
	Simulation    bool               `json:"simulation" yaml:"simulation"`
	Reconnect     ReconnectConfig    `json:"reconnect" yaml:"reconnect"`
	Fallback      FallbackConfig     `json:"fallback" yaml:"fallback"`
	Transport     TransportConfig    `json:"transport" yaml:"transport"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	NATS          NATSConfig         `json:"nats" yaml:"nats"`
	Metrics       MetricsConfig      `json:"metrics" yaml:"metrics"`
	Log           LogConfig          `json:"log" yaml:"log"`
}

// EndpointConfig locates the realtime backend
type EndpointConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// ReconnectConfig bounds reconnection
type ReconnectConfig struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	Delay        time.Duration `json:"delay" yaml:"delay"`
	LocationStep time.Duration `json:"location_step" yaml:"location_step"`
}

// FallbackConfig tunes the simulated transport
type FallbackConfig struct {
	ConnectDelay time.Duration `json:"connect_delay" yaml:"connect_delay"`
	Interval     time.Duration `json:"interval" yaml:"interval"`
}

// TransportConfig tunes the live transport
type TransportConfig struct {
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	PingInterval     time.Duration `json:"ping_interval" yaml:"ping_interval"`
	PongWait         time.Duration `json:"pong_wait" yaml:"pong_wait"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout"`

	TLS tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// NotificationConfig configures the notification channel and its sinks
type NotificationConfig struct {
	HistorySize   int    `json:"history_size" yaml:"history_size"`
	HistoryPolicy string `json:"history_policy,omitempty" yaml:"history_policy,omitempty"`
	Desktop       bool   `json:"desktop" yaml:"desktop"`
	Icon          string `json:"icon,omitempty" yaml:"icon,omitempty"`
	AsyncWorkers  int    `json:"async_workers" yaml:"async_workers"`
	QueueSize     int    `json:"queue_size" yaml:"queue_size"`
}

// NATSConfig configures the event relay
type NATSConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	URL           string        `json:"url" yaml:"url"`
	SubjectPrefix string        `json:"subject_prefix" yaml:"subject_prefix"`
	Stream        string        `json:"stream,omitempty" yaml:"stream,omitempty"`
	Token         string        `json:"token,omitempty" yaml:"token,omitempty"`
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`

	TLS tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// MetricsConfig configures the metrics and health server
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{BaseURL: "ws://localhost:8000"},
		Reconnect: ReconnectConfig{
			MaxAttempts:  10,
			Delay:        5 * time.Second,
			LocationStep: 5 * time.Second,
		},
		Fallback: FallbackConfig{
			ConnectDelay: time.Second,
			Interval:     5 * time.Second,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     30 * time.Second,
			PongWait:         60 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Notifications: NotificationConfig{
			HistorySize:   50,
			HistoryPolicy: "drop_oldest",
			AsyncWorkers:  1,
			QueueSize:     64,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "gatelink",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"json": true, "text": true}
)

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Endpoint.BaseURL != "" {
		u, err := url.Parse(c.Endpoint.BaseURL)
		if err != nil {
			return invalid("endpoint.base_url", err)
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return invalid("endpoint.base_url", fmt.Errorf("unsupported scheme %q", u.Scheme))
		}
		if u.Host == "" {
			return invalid("endpoint.base_url", fmt.Errorf("missing host"))
		}
	}

	if c.Reconnect.MaxAttempts < 0 {
		return invalid("reconnect.max_attempts", fmt.Errorf("must be >= 0, got %d", c.Reconnect.MaxAttempts))
	}
	if c.Reconnect.Delay <= 0 {
		return invalid("reconnect.delay", fmt.Errorf("must be positive"))
	}
	if c.Reconnect.LocationStep <= 0 {
		return invalid("reconnect.location_step", fmt.Errorf("must be positive"))
	}
	if c.Fallback.ConnectDelay < 0 || c.Fallback.Interval <= 0 {
		return invalid("fallback", fmt.Errorf("connect_delay must be >= 0 and interval positive"))
	}
	if c.Transport.PingInterval > 0 && c.Transport.PongWait <= c.Transport.PingInterval {
		return invalid("transport.pong_wait", fmt.Errorf("must exceed ping_interval"))
	}
	if err := c.Transport.TLS.Validate(); err != nil {
		return invalid("transport.tls", err)
	}
	if c.Notifications.HistorySize <= 0 {
		return invalid("notifications.history_size", fmt.Errorf("must be positive"))
	}
	if _, err := buffer.ParseOverflowPolicy(c.Notifications.HistoryPolicy); err != nil {
		return invalid("notifications.history_policy", err)
	}
	if c.Notifications.AsyncWorkers < 0 || c.Notifications.QueueSize < 0 {
		return invalid("notifications", fmt.Errorf("async_workers and queue_size must be >= 0"))
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return invalid("nats.url", errors.ErrMissingConfig)
		}
		if !isValidSubjectPart(c.NATS.SubjectPrefix) {
			return invalid("nats.subject_prefix",
				fmt.Errorf("%q is not valid for NATS subjects", c.NATS.SubjectPrefix))
		}
		if err := c.NATS.TLS.Validate(); err != nil {
			return invalid("nats.tls", err)
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port", fmt.Errorf("out of range: %d", c.Metrics.Port))
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return invalid("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return invalid("log.format", fmt.Errorf("unknown format %q", c.Log.Format))
	}
	return nil
}

func invalid(field string, err error) error {
	return errors.WrapInvalid(fmt.Errorf("%s: %w", field, err), "Config", "Validate", "check "+field)
}

// isValidSubjectPart allows letters, digits, '-', '_' and inner dots
func isValidSubjectPart(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// String returns the config as indented JSON with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Endpoint.Token != "" {
		masked.Endpoint.Token = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// SaveToFile writes the configuration as JSON or YAML, by extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.WrapInvalid(err, "Config", "SaveToFile", "encode config")
	}
	return writeConfigFile(path, data)
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{envPrefix: "GATELINK"}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges all layers over the defaults, then applies the environment
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		merged, err := l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw decodes a JSON or YAML file into a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	if isYAML(path) {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if err := checkYAMLDepth(&doc); err != nil {
			return nil, err
		}
		if err := doc.Decode(&raw); err != nil && len(doc.Content) > 0 {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	} else {
		if err := checkJSONDepth(data); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// durationKeys lists section.key pairs holding durations
var durationKeys = map[string][]string{
	"reconnect": {"delay", "location_step"},
	"fallback":  {"connect_delay", "interval"},
	"transport": {"handshake_timeout", "ping_interval", "pong_wait", "write_timeout"},
	"nats":      {"reconnect_wait"},
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(raw map[string]any) error {
	for section, keys := range durationKeys {
		m, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			s, ok := m[key].(string)
			if !ok {
				continue
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", section, key, err)
			}
			m[key] = d.Nanoseconds()
		}
	}
	return nil
}

// mergeFromMap overrides only the fields present in override
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies GATELINK_* variables
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		if err := checkEnvValue(key, val); err != nil {
			return "", false, errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read "+key)
		}
		return val, val != "", nil
	}

	strs := []struct {
		name   string
		target *string
	}{
		{"BASE_URL", &cfg.Endpoint.BaseURL},
		{"TOKEN", &cfg.Endpoint.Token},
		{"NATS_PREFIX", &cfg.NATS.SubjectPrefix},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
	}
	for _, s := range strs {
		val, ok, err := env(s.name)
		if err != nil {
			return err
		}
		if ok {
			*s.target = val
		}
	}

	if val, ok, err := env("NATS_URL"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URL = val
		cfg.NATS.Enabled = true
	}

	if val, ok, err := env("SIMULATION"); err != nil {
		return err
	} else if ok {
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return errors.WrapInvalid(perr, "Loader", "applyEnvOverrides", "parse "+l.envPrefix+"_SIMULATION")
		}
		cfg.Simulation = b
	}

	if val, ok, err := env("METRICS_PORT"); err != nil {
		return err
	} else if ok {
		port, perr := strconv.Atoi(val)
		if perr != nil {
			return errors.WrapInvalid(perr, "Loader", "applyEnvOverrides", "parse "+l.envPrefix+"_METRICS_PORT")
		}
		cfg.Metrics.Port = port
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
