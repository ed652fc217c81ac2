package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/c360/vizflow/errors"
)

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the complete application configuration
type Config struct {
	Log       LogConfig       `json:"log"`
	Evaluator EvaluatorConfig `json:"evaluator"`
	Workers   WorkerConfig    `json:"workers"`
	NATS      NATSConfig      `json:"nats"`
	Metrics   MetricsConfig   `json:"metrics"`
	Events    EventsConfig    `json:"events"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// EvaluatorConfig bounds the evaluation loop.
type EvaluatorConfig struct {
	MaxPassRate float64 `json:"max_pass_rate"` // passes per second, 0 = unlimited
	Burst       int     `json:"burst"`
	MailboxSize int     `json:"mailbox_size"`
}

// WorkerConfig sizes the pool that runs asynchronous processor jobs.
type WorkerConfig struct {
	Count     int `json:"count"`
	QueueSize int `json:"queue_size"`
}

// NATSConfig defines NATS connection settings. An empty URL list disables
// NATS entirely.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	Bucket        string        `json:"bucket,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// EventsConfig controls where network events are streamed.
type EventsConfig struct {
	NATSEnabled   bool   `json:"nats_enabled"`
	SubjectPrefix string `json:"subject_prefix"`
	WebSocketPath string `json:"websocket_path"`
}

// Default returns the built-in configuration every layer is merged onto.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: LogFormatText},
		Evaluator: EvaluatorConfig{
			MaxPassRate: 60,
			Burst:       1,
			MailboxSize: 256,
		},
		Workers: WorkerConfig{Count: 4, QueueSize: 64},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
			Bucket:        "vizflow_workspaces",
		},
		Metrics: MetricsConfig{Enabled: false, Port: 9090, Path: "/metrics"},
		Events: EventsConfig{
			SubjectPrefix: "vizflow.events",
			WebSocketPath: "/events",
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	switch c.Log.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return invalid("log.format %q must be %q or %q", c.Log.Format, LogFormatJSON, LogFormatText)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is not a known level", c.Log.Level)
	}

	if c.Evaluator.MaxPassRate < 0 {
		return invalid("evaluator.max_pass_rate must not be negative")
	}
	if c.Evaluator.MaxPassRate > 0 && c.Evaluator.Burst < 1 {
		return invalid("evaluator.burst must be at least 1 when the pass rate is limited")
	}
	if c.Evaluator.MailboxSize < 1 {
		return invalid("evaluator.mailbox_size must be positive")
	}

	if c.Workers.Count < 0 || c.Workers.QueueSize < 0 {
		return invalid("workers.count and workers.queue_size must not be negative")
	}

	if c.NATS.Bucket != "" && !isValidNATSSubjectPart(c.NATS.Bucket) {
		return invalid("nats.bucket %q is not a valid bucket name", c.NATS.Bucket)
	}
	if c.Events.NATSEnabled {
		if len(c.NATS.URLs) == 0 {
			return invalid("events.nats_enabled requires nats.urls")
		}
		if !isValidNATSSubjectPart(c.Events.SubjectPrefix) {
			return invalid("events.subject_prefix %q is not valid for NATS subjects", c.Events.SubjectPrefix)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return invalid("metrics.port %d out of range", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path must start with /")
		}
		if c.Events.WebSocketPath != "" && !strings.HasPrefix(c.Events.WebSocketPath, "/") {
			return invalid("events.websocket_path must start with /")
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "check configuration")
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "VIZFLOW",
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier
// ones key by key.
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

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		if cfg, err = mergeFromMap(cfg, raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
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

// loadRaw reads a layer as a generic map. YAML and JSON are chosen by
// extension.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}
	default:
		if err := checkJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// durationKeys lists section.key pairs holding durations.
var durationKeys = map[string][]string{
	"nats": {"reconnect_wait", "timeout"},
}

// parseDurations converts duration strings to nanoseconds for json
// unmarshaling.
func parseDurations(data map[string]any) error {
	for section, keys := range durationKeys {
		m, ok := data[section].(map[string]any)
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
				return fmt.Errorf("%w: %s.%s: %v", errors.ErrInvalidConfig, section, key, err)
			}
			m[key] = d.Nanoseconds()
		}
	}
	return nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields
// present in the map.
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

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
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
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

// applyEnvOverrides applies <prefix>_* environment variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) error {
		val, ok := l.env(name)
		if !ok {
			return nil
		}
		if err := checkEnvValue(name, val); err != nil {
			return err
		}
		*dst = val
		return nil
	}
	num := func(name string, dst *int) error {
		val, ok := l.env(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s=%q", errors.ErrInvalidConfig, l.envPrefix+"_"+name, val),
				"Loader", "applyEnvOverrides", "parse integer")
		}
		*dst = n
		return nil
	}

	for _, err := range []error{
		str("LOG_LEVEL", &cfg.Log.Level),
		str("LOG_FORMAT", &cfg.Log.Format),
		str("NATS_USERNAME", &cfg.NATS.Username),
		str("NATS_PASSWORD", &cfg.NATS.Password),
		str("NATS_TOKEN", &cfg.NATS.Token),
		str("NATS_BUCKET", &cfg.NATS.Bucket),
		num("WORKERS", &cfg.Workers.Count),
		num("METRICS_PORT", &cfg.Metrics.Port),
	} {
		if err != nil {
			return err
		}
	}

	if val, ok := l.env("NATS_URLS"); ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val, ok := l.env("METRICS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s_METRICS_ENABLED=%q", errors.ErrInvalidConfig, l.envPrefix, val),
				"Loader", "applyEnvOverrides", "parse bool")
		}
		cfg.Metrics.Enabled = enabled
	}
	return nil
}

func (l *Loader) env(name string) (string, bool) {
	val, ok := l.lookupEnv(l.envPrefix + "_" + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// SaveToFile saves the configuration as JSON or YAML by extension.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Round trip through JSON so YAML keys follow the json tags.
		var raw map[string]any
		if raw, err = toMap(c); err == nil {
			data, err = yaml.Marshal(raw)
		}
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.WrapFatal(err, "Config", "SaveToFile", "encode configuration")
	}
	return writeConfigFile(path, data)
}

// toMap renders c as a generic map with integers kept exact and durations
// written as duration strings.
func toMap(c *Config) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	normalizeNumbers(m)
	for section, keys := range durationKeys {
		sm, ok := m[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			if n, ok := sm[key].(int64); ok {
				sm[key] = time.Duration(n).String()
			}
		}
	}
	return m, nil
}

func normalizeNumbers(m map[string]any) {
	for k, v := range m {
		switch x := v.(type) {
		case json.Number:
			if n, err := x.Int64(); err == nil {
				m[k] = n
			} else if f, err := x.Float64(); err == nil {
				m[k] = f
			}
		case map[string]any:
			normalizeNumbers(x)
		}
	}
}

// String returns a JSON representation with secrets redacted.
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "***"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}
