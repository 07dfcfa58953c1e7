package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

// Metadata contains provenance details for loaded configuration.
type Metadata struct {
	sources  map[string]ValueSource
	filePath string
	loadedAt time.Time
}

// Source returns the origin for the given configuration field.
func (m Metadata) Source(field string) ValueSource {
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// FilePath returns the config file that was read, or "" when none was.
func (m Metadata) FilePath() string { return m.filePath }

// LoadedAt returns when the configuration was constructed.
func (m Metadata) LoadedAt() time.Time { return m.loadedAt }

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// DefaultEnvAliases maps each canonical variable to the legacy and prefixed
// names that may still carry it. The canonical names match what the original
// deployment used, so an existing environment keeps working unchanged.
func DefaultEnvAliases() map[string][]string {
	aliases := map[string][]string{
		"TELEGRAM_TOKEN":       {"ASTRA_TELEGRAM_TOKEN", "BOT_TOKEN"},
		"ADMIN_IDS":            {"ASTRA_ADMIN_IDS"},
		"DB_PATH":              {"ASTRA_DB_PATH"},
		"LOG_LEVEL":            {"ASTRA_LOG_LEVEL"},
		"LOG_FORMAT":           {"ASTRA_LOG_FORMAT"},
		"CONVERSATION_TIMEOUT": {"ASTRA_CONVERSATION_TIMEOUT"},
		"MAX_BROADCAST_USERS":  {"ASTRA_MAX_BROADCAST_USERS"},
		"BROADCAST_HOUR":       {"ASTRA_BROADCAST_HOUR"},
		"HOST":                 {"ASTRA_SERVER_HOST"},
		"PORT":                 {"ASTRA_SERVER_PORT"},
		"CORS_ALLOWED_ORIGINS": {"ASTRA_ALLOWED_ORIGINS"},
		"METRICS_PORT":         {"ASTRA_METRICS_PORT"},
		"ASTRA_ENV":            {"ENVIRONMENT"},
	}

	copied := make(map[string][]string, len(aliases))
	for key, list := range aliases {
		copied[key] = append([]string(nil), list...)
	}
	return copied
}

// AliasEnvLookup wraps base so a miss on the canonical name falls through to
// its aliases in order.
func AliasEnvLookup(base EnvLookup, aliases map[string][]string) EnvLookup {
	if base == nil {
		base = DefaultEnvLookup
	}
	return func(key string) (string, bool) {
		if val, ok := base(key); ok {
			return val, true
		}
		for _, alias := range aliases[key] {
			if val, ok := base(alias); ok {
				return val, true
			}
		}
		return "", false
	}
}

// Overrides conveys caller-specified values that win over env and file.
type Overrides struct {
	Environment   *string
	TelegramToken *string
	DBPath        *string
	LogLevel      *string
	ServerPort    *int
}

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	configPath string
	overrides  Overrides
}

// WithEnv substitutes the environment lookup, usually in tests.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.envLookup = lookup
		}
	}
}

// WithConfigPath pins the config file instead of probing the default.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithFileReader substitutes the file reader, usually in tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		if reader != nil {
			o.readFile = reader
		}
	}
}

// WithOverrides applies caller overrides after every other layer.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// MapEnvLookup builds an EnvLookup from a fixed map, for tests.
func MapEnvLookup(env map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		val, ok := env[key]
		return val, ok
	}
}

// Load assembles the configuration: defaults, the YAML file, the
// environment, then overrides. The returned config is already validated.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}
	options.envLookup = AliasEnvLookup(options.envLookup, DefaultEnvAliases())

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}
	cfg := Default()

	if err := applyFile(&cfg, &meta, options); err != nil {
		return Config{}, Metadata{}, err
	}
	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return Config{}, Metadata{}, err
	}
	applyOverrides(&cfg, &meta, options.overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, meta, nil
}

// fileConfig mirrors Config for YAML decoding. Scalars whose zero value is a
// legitimate setting are pointers so an absent key can be told apart from an
// explicit zero.
type fileConfig struct {
	Environment string `yaml:"environment"`
	Telegram    *struct {
		Enabled            *bool    `yaml:"enabled"`
		Token              string   `yaml:"token"`
		AdminIDs           []int64  `yaml:"admin_ids"`
		PollTimeoutSeconds *int     `yaml:"poll_timeout_seconds"`
		RateLimitRPS       *float64 `yaml:"rate_limit_rps"`
		RateLimitBurst     *int     `yaml:"rate_limit_burst"`
		DedupCacheSize     *int     `yaml:"dedup_cache_size"`
	} `yaml:"telegram"`
	Server *struct {
		Enabled        *bool    `yaml:"enabled"`
		Host           string   `yaml:"host"`
		Port           *int     `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		RateLimitRPS   *float64 `yaml:"rate_limit_rps"`
		RateLimitBurst *int     `yaml:"rate_limit_burst"`
	} `yaml:"server"`
	Database *struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Session *struct {
		TimeoutSeconds         *int `yaml:"timeout_seconds"`
		ShardCount             *int `yaml:"shard_count"`
		JanitorIntervalSeconds *int `yaml:"janitor_interval_seconds"`
	} `yaml:"session"`
	Broadcast *struct {
		DailyHour   *int `yaml:"daily_hour"`
		MaxUsers    *int `yaml:"max_users"`
		Concurrency *int `yaml:"concurrency"`
	} `yaml:"broadcast"`
	Observability *struct {
		Logging *struct {
			Level  string `yaml:"level"`
			Format string `yaml:"format"`
		} `yaml:"logging"`
		Metrics *struct {
			Enabled        *bool `yaml:"enabled"`
			PrometheusPort *int  `yaml:"prometheus_port"`
		} `yaml:"metrics"`
		Tracing *struct {
			Enabled        *bool    `yaml:"enabled"`
			Exporter       string   `yaml:"exporter"`
			OTLPEndpoint   string   `yaml:"otlp_endpoint"`
			ZipkinEndpoint string   `yaml:"zipkin_endpoint"`
			SampleRate     *float64 `yaml:"sample_rate"`
			ServiceName    string   `yaml:"service_name"`
			ServiceVersion string   `yaml:"service_version"`
		} `yaml:"tracing"`
	} `yaml:"observability"`
}

func applyFile(cfg *Config, meta *Metadata, opts loadOptions) error {
	path := opts.configPath
	explicit := path != ""
	if !explicit {
		if envPath, ok := opts.envLookup("ASTRA_CONFIG_PATH"); ok && envPath != "" {
			path = envPath
			explicit = true
		} else {
			path = DefaultConfigFile
		}
	}

	data, err := opts.readFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	meta.filePath = path

	set := func(field string) { meta.sources[field] = SourceFile }

	if parsed.Environment != "" {
		cfg.Environment = parsed.Environment
		set("environment")
	}
	if t := parsed.Telegram; t != nil {
		if t.Enabled != nil {
			cfg.Telegram.Enabled = *t.Enabled
			set("telegram.enabled")
		}
		if t.Token != "" {
			cfg.Telegram.Token = t.Token
			set("telegram.token")
		}
		if len(t.AdminIDs) > 0 {
			cfg.Telegram.AdminIDs = append([]int64(nil), t.AdminIDs...)
			set("telegram.admin_ids")
		}
		if t.PollTimeoutSeconds != nil {
			cfg.Telegram.PollTimeoutSeconds = *t.PollTimeoutSeconds
			set("telegram.poll_timeout_seconds")
		}
		if t.RateLimitRPS != nil {
			cfg.Telegram.RateLimitRPS = *t.RateLimitRPS
			set("telegram.rate_limit_rps")
		}
		if t.RateLimitBurst != nil {
			cfg.Telegram.RateLimitBurst = *t.RateLimitBurst
			set("telegram.rate_limit_burst")
		}
		if t.DedupCacheSize != nil {
			cfg.Telegram.DedupCacheSize = *t.DedupCacheSize
			set("telegram.dedup_cache_size")
		}
	}
	if s := parsed.Server; s != nil {
		if s.Enabled != nil {
			cfg.Server.Enabled = *s.Enabled
			set("server.enabled")
		}
		if s.Host != "" {
			cfg.Server.Host = s.Host
			set("server.host")
		}
		if s.Port != nil {
			cfg.Server.Port = *s.Port
			set("server.port")
		}
		if len(s.AllowedOrigins) > 0 {
			cfg.Server.AllowedOrigins = append([]string(nil), s.AllowedOrigins...)
			set("server.allowed_origins")
		}
		if s.RateLimitRPS != nil {
			cfg.Server.RateLimitRPS = *s.RateLimitRPS
			set("server.rate_limit_rps")
		}
		if s.RateLimitBurst != nil {
			cfg.Server.RateLimitBurst = *s.RateLimitBurst
			set("server.rate_limit_burst")
		}
	}
	if d := parsed.Database; d != nil && d.Path != "" {
		cfg.Database.Path = d.Path
		set("database.path")
	}
	if s := parsed.Session; s != nil {
		if s.TimeoutSeconds != nil {
			cfg.Session.TimeoutSeconds = *s.TimeoutSeconds
			set("session.timeout_seconds")
		}
		if s.ShardCount != nil {
			cfg.Session.ShardCount = *s.ShardCount
			set("session.shard_count")
		}
		if s.JanitorIntervalSeconds != nil {
			cfg.Session.JanitorIntervalSeconds = *s.JanitorIntervalSeconds
			set("session.janitor_interval_seconds")
		}
	}
	if b := parsed.Broadcast; b != nil {
		if b.DailyHour != nil {
			cfg.Broadcast.DailyHour = *b.DailyHour
			set("broadcast.daily_hour")
		}
		if b.MaxUsers != nil {
			cfg.Broadcast.MaxUsers = *b.MaxUsers
			set("broadcast.max_users")
		}
		if b.Concurrency != nil {
			cfg.Broadcast.Concurrency = *b.Concurrency
			set("broadcast.concurrency")
		}
	}
	if o := parsed.Observability; o != nil {
		if o.Logging != nil {
			if o.Logging.Level != "" {
				cfg.Observability.Logging.Level = o.Logging.Level
				set("observability.logging.level")
			}
			if o.Logging.Format != "" {
				cfg.Observability.Logging.Format = o.Logging.Format
				set("observability.logging.format")
			}
		}
		if o.Metrics != nil {
			if o.Metrics.Enabled != nil {
				cfg.Observability.Metrics.Enabled = *o.Metrics.Enabled
				set("observability.metrics.enabled")
			}
			if o.Metrics.PrometheusPort != nil {
				cfg.Observability.Metrics.PrometheusPort = *o.Metrics.PrometheusPort
				set("observability.metrics.prometheus_port")
			}
		}
		if o.Tracing != nil {
			if o.Tracing.Enabled != nil {
				cfg.Observability.Tracing.Enabled = *o.Tracing.Enabled
				set("observability.tracing.enabled")
			}
			if o.Tracing.Exporter != "" {
				cfg.Observability.Tracing.Exporter = o.Tracing.Exporter
				set("observability.tracing.exporter")
			}
			if o.Tracing.OTLPEndpoint != "" {
				cfg.Observability.Tracing.OTLPEndpoint = o.Tracing.OTLPEndpoint
				set("observability.tracing.otlp_endpoint")
			}
			if o.Tracing.ZipkinEndpoint != "" {
				cfg.Observability.Tracing.ZipkinEndpoint = o.Tracing.ZipkinEndpoint
				set("observability.tracing.zipkin_endpoint")
			}
			if o.Tracing.SampleRate != nil {
				cfg.Observability.Tracing.SampleRate = *o.Tracing.SampleRate
				set("observability.tracing.sample_rate")
			}
			if o.Tracing.ServiceName != "" {
				cfg.Observability.Tracing.ServiceName = o.Tracing.ServiceName
				set("observability.tracing.service_name")
			}
			if o.Tracing.ServiceVersion != "" {
				cfg.Observability.Tracing.ServiceVersion = o.Tracing.ServiceVersion
				set("observability.tracing.service_version")
			}
		}
	}
	return nil
}

func applyEnv(cfg *Config, meta *Metadata, lookup EnvLookup) error {
	set := func(field string) { meta.sources[field] = SourceEnv }

	if val, ok := lookup("ASTRA_ENV"); ok && val != "" {
		cfg.Environment = val
		set("environment")
	}
	if val, ok := lookup("TELEGRAM_TOKEN"); ok && val != "" {
		cfg.Telegram.Token = val
		set("telegram.token")
	}
	if val, ok := lookup("ADMIN_IDS"); ok && val != "" {
		ids, err := parseAdminIDs(val)
		if err != nil {
			return fmt.Errorf("ADMIN_IDS: %w", err)
		}
		cfg.Telegram.AdminIDs = ids
		set("telegram.admin_ids")
	}
	if val, ok := lookup("DB_PATH"); ok && val != "" {
		cfg.Database.Path = val
		set("database.path")
	}
	if val, ok := lookup("LOG_LEVEL"); ok && val != "" {
		cfg.Observability.Logging.Level = strings.ToLower(val)
		set("observability.logging.level")
	}
	if val, ok := lookup("LOG_FORMAT"); ok && val != "" {
		cfg.Observability.Logging.Format = strings.ToLower(val)
		set("observability.logging.format")
	}
	if val, ok := lookup("CONVERSATION_TIMEOUT"); ok && val != "" {
		secs, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("CONVERSATION_TIMEOUT: %q is not a number of seconds", val)
		}
		cfg.Session.TimeoutSeconds = secs
		set("session.timeout_seconds")
	}
	if val, ok := lookup("MAX_BROADCAST_USERS"); ok && val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("MAX_BROADCAST_USERS: %q is not a number", val)
		}
		cfg.Broadcast.MaxUsers = n
		set("broadcast.max_users")
	}
	if val, ok := lookup("BROADCAST_HOUR"); ok && val != "" {
		hour, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("BROADCAST_HOUR: %q is not an hour", val)
		}
		cfg.Broadcast.DailyHour = hour
		set("broadcast.daily_hour")
	}
	if val, ok := lookup("HOST"); ok && val != "" {
		cfg.Server.Host = val
		set("server.host")
	}
	if val, ok := lookup("PORT"); ok && val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("PORT: %q is not a port number", val)
		}
		cfg.Server.Port = port
		set("server.port")
	}
	if val, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && val != "" {
		cfg.Server.AllowedOrigins = splitAndTrim(val)
		set("server.allowed_origins")
	}
	if val, ok := lookup("METRICS_PORT"); ok && val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("METRICS_PORT: %q is not a port number", val)
		}
		cfg.Observability.Metrics.PrometheusPort = port
		set("observability.metrics.prometheus_port")
	}
	return nil
}

func applyOverrides(cfg *Config, meta *Metadata, overrides Overrides) {
	set := func(field string) { meta.sources[field] = SourceOverride }

	if overrides.Environment != nil {
		cfg.Environment = *overrides.Environment
		set("environment")
	}
	if overrides.TelegramToken != nil {
		cfg.Telegram.Token = *overrides.TelegramToken
		set("telegram.token")
	}
	if overrides.DBPath != nil {
		cfg.Database.Path = *overrides.DBPath
		set("database.path")
	}
	if overrides.LogLevel != nil {
		cfg.Observability.Logging.Level = *overrides.LogLevel
		set("observability.logging.level")
	}
	if overrides.ServerPort != nil {
		cfg.Server.Port = *overrides.ServerPort
		set("server.port")
	}
}

// parseAdminIDs parses a comma-separated admin ID list.
func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("use comma-separated numbers: %q is not an id", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one admin id is required")
	}
	return ids, nil
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
