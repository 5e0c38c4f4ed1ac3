package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Config represents the complete application configuration.
type Config struct {
	Version    string           `json:"version"` // Semantic version (e.g., "1.0.0") of the config schema
	Instrument InstrumentConfig `json:"instrument"`
	NATS       NATSConfig       `json:"nats"`
	HTTP       HTTPConfig       `json:"http"`
	Metrics    MetricsConfig    `json:"metrics"`
	Library    LibraryConfig    `json:"library,omitempty"`
	RunStore   RunStoreConfig   `json:"runstore,omitempty"`
	Services   ServiceConfigs   `json:"services"` // Map of service configs keyed by service name
}

// InstrumentConfig identifies the simulated instrument this process represents.
// Lab and ID are embedded in NATS subjects and run records, so both must be
// subject-token safe.
type InstrumentConfig struct {
	Lab         string `json:"lab"`                   // Laboratory namespace (e.g., "intellilab")
	ID          string `json:"id"`                    // Instrument identifier (e.g., "gc-sim-1")
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
	Description string `json:"description,omitempty"`
}

// NATSConfig defines NATS connection settings.
type NATSConfig struct {
	URLs          []string        `json:"urls,omitempty"`
	MaxReconnects int             `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration   `json:"reconnect_wait,omitempty"`
	Username      string          `json:"username,omitempty"`
	Password      string          `json:"password,omitempty"`
	Token         string          `json:"token,omitempty"`
	TLS           TLSConfig       `json:"tls,omitempty"`
	JetStream     JetStreamConfig `json:"jetstream,omitempty"`
}

// TLSConfig for secure NATS and HTTP endpoints.
type TLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// JetStreamConfig for JetStream settings.
type JetStreamConfig struct {
	Enabled bool   `json:"enabled"`
	Domain  string `json:"domain,omitempty"`
}

// RunStoreConfig defines the KV bucket that holds simulation run history.
type RunStoreConfig struct {
	Bucket   string        `json:"bucket,omitempty"`   // KV bucket name
	History  int           `json:"history,omitempty"`  // Revisions kept per run key
	TTL      time.Duration `json:"ttl,omitempty"`      // 0 = no expiration
	MaxRuns  int           `json:"max_runs,omitempty"` // Index cap for the recent-run listing
	Replicas int           `json:"replicas,omitempty"` // Replication factor
}

// HTTPConfig defines the REST/WebSocket gateway endpoint.
type HTTPConfig struct {
	Enabled        bool          `json:"enabled"`
	Addr           string        `json:"addr,omitempty"`
	ReadTimeout    time.Duration `json:"read_timeout,omitempty"`
	WriteTimeout   time.Duration `json:"write_timeout,omitempty"`
	RateLimit      float64       `json:"rate_limit,omitempty"` // Requests per second per client, 0 = unlimited
	RateBurst      int           `json:"rate_burst,omitempty"`
	CORSOrigins    []string      `json:"cors_origins,omitempty"`     // Allowed origins; empty disables CORS
	MaxRequestSize int64         `json:"max_request_size,omitempty"` // Request body cap in bytes, 0 = gateway default
	TLS            TLSConfig     `json:"tls,omitempty"`
}

// MetricsConfig defines the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// LibraryConfig lists site data files layered over the built-in compound
// catalog and method templates. Files are YAML and are applied in order at
// startup.
type LibraryConfig struct {
	CompoundFiles []string `json:"compound_files,omitempty"`
	TemplateFiles []string `json:"template_files,omitempty"`
}

// ServiceConfig provides configuration for creating a service instance.
type ServiceConfig struct {
	Name    string          `json:"name"`    // Service name (redundant with map key but useful for validation)
	Enabled bool            `json:"enabled"` // Whether service is enabled at runtime
	Config  json.RawMessage `json:"config"`  // Service-specific configuration
}

// Validate checks the service config for structural problems.
func (s ServiceConfig) Validate() error {
	if s.Name == "" {
		return errors.New("service name cannot be empty")
	}
	if len(s.Config) > 0 && !json.Valid(s.Config) {
		return fmt.Errorf("service %s: config is not valid JSON", s.Name)
	}
	return nil
}

// ServiceConfigs holds service configurations keyed by service name.
type ServiceConfigs map[string]ServiceConfig

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate before updating
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		// Fallback to shallow copy if marshaling fails
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		// Fallback to shallow copy if unmarshaling fails
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Version != "" {
		if _, _, _, err := parseSemVer(c.Version); err != nil {
			return fmt.Errorf("version: %w", err)
		}
	}

	if c.Instrument.Lab == "" {
		return errors.New("instrument.lab is required")
	}
	if !isValidSubjectToken(c.Instrument.Lab) {
		return fmt.Errorf(
			"instrument.lab '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Instrument.Lab,
		)
	}

	if c.Instrument.ID == "" {
		return errors.New("instrument.id is required")
	}
	if !isValidSubjectToken(c.Instrument.ID) {
		return fmt.Errorf(
			"instrument.id '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Instrument.ID,
		)
	}

	if len(c.NATS.URLs) == 0 {
		return errors.New("nats.urls is required")
	}
	if err := c.NATS.TLS.validate("nats.tls"); err != nil {
		return err
	}

	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			return errors.New("http.addr is required when the gateway is enabled")
		}
		if c.HTTP.RateLimit < 0 {
			return fmt.Errorf("http.rate_limit must not be negative, got %v", c.HTTP.RateLimit)
		}
		if c.HTTP.RateBurst < 0 {
			return fmt.Errorf("http.rate_burst must not be negative, got %d", c.HTTP.RateBurst)
		}
		if c.HTTP.MaxRequestSize < 0 {
			return fmt.Errorf("http.max_request_size must not be negative, got %d", c.HTTP.MaxRequestSize)
		}
		if c.HTTP.MaxRequestSize > 100*1024*1024 {
			return fmt.Errorf("http.max_request_size must not exceed 100MB, got %d", c.HTTP.MaxRequestSize)
		}
		if err := c.HTTP.TLS.validate("http.tls"); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}

	if c.NATS.JetStream.Enabled {
		if c.RunStore.Bucket == "" {
			return errors.New("runstore.bucket is required when jetstream is enabled")
		}
		if !isValidBucketName(c.RunStore.Bucket) {
			return fmt.Errorf(
				"runstore.bucket '%s' is not a valid KV bucket name (must be alphanumeric with dashes, underscores)",
				c.RunStore.Bucket,
			)
		}
		if c.RunStore.History < 0 {
			return fmt.Errorf("runstore.history must not be negative, got %d", c.RunStore.History)
		}
		if c.RunStore.Replicas < 0 || c.RunStore.Replicas > 5 {
			return fmt.Errorf("runstore.replicas must be between 0 and 5, got %d", c.RunStore.Replicas)
		}
	}

	for name, svc := range c.Services {
		if name == "" {
			return errors.New("service map key cannot be empty")
		}
		if err := svc.Validate(); err != nil {
			return err
		}
		if svc.Name != name {
			return fmt.Errorf("service %s: name '%s' does not match map key", name, svc.Name)
		}
	}

	return nil
}

// validate checks that an enabled TLS section names an existing key pair.
func (t TLSConfig) validate(section string) error {
	if !t.Enabled {
		return nil
	}
	if t.CertFile == "" {
		return fmt.Errorf("%s.cert_file is required when TLS is enabled", section)
	}
	if t.KeyFile == "" {
		return fmt.Errorf("%s.key_file is required when TLS is enabled", section)
	}
	if _, err := os.Stat(t.CertFile); err != nil {
		return fmt.Errorf("%s.cert_file: %w", section, err)
	}
	if _, err := os.Stat(t.KeyFile); err != nil {
		return fmt.Errorf("%s.key_file: %w", section, err)
	}
	if t.CAFile != "" {
		if _, err := os.Stat(t.CAFile); err != nil {
			return fmt.Errorf("%s.ca_file: %w", section, err)
		}
	}
	return nil
}

// isValidSubjectToken checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectToken(s string) bool {
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

// isValidBucketName checks if a string is a valid JetStream KV bucket name.
// Bucket names are stricter than subject tokens: no dots.
func isValidBucketName(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' {
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
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "INTELLILAB",
	}
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

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := l.getDefaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	l.applyEnvOverrides(cfg)

	// Fill service names from map keys when the layer omitted them
	for name, svc := range cfg.Services {
		if svc.Name == "" {
			svc.Name = name
			cfg.Services[name] = svc
		}
	}

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Version: "1.0.0",
		Instrument: InstrumentConfig{
			Lab:         "intellilab",
			ID:          "gc-sim-1",
			Environment: "dev",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			JetStream: JetStreamConfig{
				Enabled: true,
			},
		},
		HTTP: HTTPConfig{
			Enabled:      true,
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit:    20,
			RateBurst:    40,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9091",
		},
		RunStore: RunStoreConfig{
			Bucket:  "intellilab_gc_runs",
			History: 1,
			MaxRuns: 200,
		},
		Services: ServiceConfigs{
			"simulation": ServiceConfig{
				Name:    "simulation",
				Enabled: true,
				Config:  json.RawMessage(`{}`),
			},
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	// Use secure file reading with validation
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	// Unmarshal into map
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if nats, ok := data["nats"].(map[string]any); ok {
		parseDurationKey(nats, "reconnect_wait")
	}
	if httpSection, ok := data["http"].(map[string]any); ok {
		parseDurationKey(httpSection, "read_timeout")
		parseDurationKey(httpSection, "write_timeout")
	}
	if runstore, ok := data["runstore"].(map[string]any); ok {
		parseDurationKey(runstore, "ttl")
	}
}

// parseDurationKey rewrites a string duration in place as nanoseconds
func parseDurationKey(section map[string]any, key string) {
	if s, ok := section[key].(string); ok {
		if d, err := parseDurationWithDays(s); err == nil {
			section[key] = d.Nanoseconds()
		}
	}
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	// Instrument overrides
	if val := l.envValue("_INSTRUMENT_LAB"); val != "" {
		cfg.Instrument.Lab = val
	}
	if val := l.envValue("_INSTRUMENT_ID"); val != "" {
		cfg.Instrument.ID = val
	}
	if val := l.envValue("_INSTRUMENT_ENV"); val != "" {
		cfg.Instrument.Environment = val
	}

	// NATS overrides
	if val := l.envValue("_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := l.envValue("_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := l.envValue("_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := l.envValue("_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}

	// Endpoint overrides
	if val := l.envValue("_HTTP_ADDR"); val != "" {
		cfg.HTTP.Addr = val
	}
	if val := l.envValue("_METRICS_ADDR"); val != "" {
		cfg.Metrics.Addr = val
	}
}

// envValue returns a validated override value, or "" when unset or rejected
func (l *Loader) envValue(suffix string) string {
	key := l.envPrefix + suffix
	val := os.Getenv(key)
	if val == "" {
		return ""
	}
	if err := validateEnvVar(key, val); err != nil {
		return ""
	}
	return val
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// Subject returns the instrument-scoped NATS subject suffix "<lab>.<id>".
func (c *Config) Subject() string {
	return c.Instrument.Lab + "." + c.Instrument.ID
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// UnmarshalJSON implements custom JSON unmarshaling for Config so duration
// fields accept both strings ("2s", "14d") and nanosecond numbers.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		NATS struct {
			URLs          []string        `json:"urls"`
			MaxReconnects int             `json:"max_reconnects"`
			ReconnectWait any             `json:"reconnect_wait"`
			Username      string          `json:"username,omitempty"`
			Password      string          `json:"password,omitempty"`
			Token         string          `json:"token,omitempty"`
			TLS           TLSConfig       `json:"tls,omitempty"`
			JetStream     JetStreamConfig `json:"jetstream"`
		} `json:"nats"`
		HTTP struct {
			Enabled        bool      `json:"enabled"`
			Addr           string    `json:"addr,omitempty"`
			ReadTimeout    any       `json:"read_timeout"`
			WriteTimeout   any       `json:"write_timeout"`
			RateLimit      float64   `json:"rate_limit,omitempty"`
			RateBurst      int       `json:"rate_burst,omitempty"`
			CORSOrigins    []string  `json:"cors_origins,omitempty"`
			MaxRequestSize int64     `json:"max_request_size,omitempty"`
			TLS            TLSConfig `json:"tls,omitempty"`
		} `json:"http"`
		RunStore struct {
			Bucket   string `json:"bucket,omitempty"`
			History  int    `json:"history,omitempty"`
			TTL      any    `json:"ttl"`
			MaxRuns  int    `json:"max_runs,omitempty"`
			Replicas int    `json:"replicas,omitempty"`
		} `json:"runstore"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.NATS.URLs = aux.NATS.URLs
	c.NATS.MaxReconnects = aux.NATS.MaxReconnects
	c.NATS.Username = aux.NATS.Username
	c.NATS.Password = aux.NATS.Password
	c.NATS.Token = aux.NATS.Token
	c.NATS.TLS = aux.NATS.TLS
	c.NATS.JetStream = aux.NATS.JetStream

	c.HTTP.Enabled = aux.HTTP.Enabled
	c.HTTP.Addr = aux.HTTP.Addr
	c.HTTP.RateLimit = aux.HTTP.RateLimit
	c.HTTP.RateBurst = aux.HTTP.RateBurst
	c.HTTP.CORSOrigins = aux.HTTP.CORSOrigins
	c.HTTP.MaxRequestSize = aux.HTTP.MaxRequestSize
	c.HTTP.TLS = aux.HTTP.TLS

	c.RunStore.Bucket = aux.RunStore.Bucket
	c.RunStore.History = aux.RunStore.History
	c.RunStore.MaxRuns = aux.RunStore.MaxRuns
	c.RunStore.Replicas = aux.RunStore.Replicas

	var err error
	if c.NATS.ReconnectWait, err = flexibleDuration(aux.NATS.ReconnectWait); err != nil {
		return fmt.Errorf("nats.reconnect_wait: %w", err)
	}
	if c.HTTP.ReadTimeout, err = flexibleDuration(aux.HTTP.ReadTimeout); err != nil {
		return fmt.Errorf("http.read_timeout: %w", err)
	}
	if c.HTTP.WriteTimeout, err = flexibleDuration(aux.HTTP.WriteTimeout); err != nil {
		return fmt.Errorf("http.write_timeout: %w", err)
	}
	if c.RunStore.TTL, err = flexibleDuration(aux.RunStore.TTL); err != nil {
		return fmt.Errorf("runstore.ttl: %w", err)
	}

	return nil
}

// flexibleDuration accepts a duration as a string ("90s", "14d"), a
// nanosecond number, or nothing.
func flexibleDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		return parseDurationWithDays(d)
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}

// parseSemVer parses a semantic version string (e.g., "1.2.3")
// Returns major, minor, patch, error
func parseSemVer(version string) (int, int, int, error) {
	if version == "" {
		return 0, 0, 0, errors.New("version cannot be empty")
	}

	// Remove 'v' prefix if present
	version = strings.TrimPrefix(version, "v")

	// Split into parts
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	// Parse major
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid major version '%s': %w", parts[0], err)
	}

	// Parse minor
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid minor version '%s': %w", parts[1], err)
	}

	// Parse patch
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid patch version '%s': %w", parts[2], err)
	}

	return major, minor, patch, nil
}
