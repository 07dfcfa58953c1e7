package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type envMap map[string]string

func (e envMap) Lookup(key string) (string, bool) {
	val, ok := e[key]
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func noFile(string) ([]byte, error) { return nil, os.ErrNotExist }

func TestLoadDefaults(t *testing.T) {
	cfg, meta, err := Load(
		WithEnv(envMap{}.Lookup),
		WithFileReader(noFile),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Environment != "development" {
		t.Fatalf("expected default environment 'development', got %q", cfg.Environment)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "" {
		t.Fatalf("unexpected telegram defaults: %+v", cfg.Telegram)
	}
	if cfg.TelegramActive() {
		t.Fatal("telegram must stay inactive without a token")
	}
	if cfg.Telegram.PollTimeoutSeconds != 30 || cfg.Telegram.RateLimitBurst != 3 {
		t.Fatalf("unexpected telegram tuning defaults: %+v", cfg.Telegram)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected server default addr: %s", cfg.Server.Addr())
	}
	if cfg.Database.Path != DefaultDBPath {
		t.Fatalf("unexpected database path default: %s", cfg.Database.Path)
	}
	if cfg.Session.Timeout().Seconds() != 300 || cfg.Session.ShardCount != 16 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Broadcast.DailyHour != 9 || cfg.Broadcast.MaxUsers != 1000 {
		t.Fatalf("unexpected broadcast defaults: %+v", cfg.Broadcast)
	}
	if cfg.Observability.Logging.Level != "info" || cfg.Observability.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Observability.Logging)
	}
	if got := meta.Source("telegram.token"); got != SourceDefault {
		t.Fatalf("expected default source for token, got %s", got)
	}
	if meta.FilePath() != "" {
		t.Fatalf("expected no file path when no file was read, got %q", meta.FilePath())
	}
}

func TestLoadFromFile(t *testing.T) {
	fileData := []byte(`
environment: staging
telegram:
  token: "123456:file-token"
  admin_ids: [42, 99]
  poll_timeout_seconds: 10
  rate_limit_rps: 0.5
  dedup_cache_size: 256
server:
  enabled: false
  host: 127.0.0.1
  port: 9000
  allowed_origins:
    - https://astra.example
database:
  path: /var/lib/astra/astra.db
session:
  timeout_seconds: 120
  shard_count: 4
broadcast:
  daily_hour: 7
  max_users: 50
observability:
  logging:
    level: debug
    format: text
  metrics:
    enabled: false
  tracing:
    enabled: true
    exporter: zipkin
    zipkin_endpoint: http://zipkin:9411/api/v2/spans
`)
	cfg, meta, err := Load(
		WithEnv(envMap{}.Lookup),
		WithFileReader(func(string) ([]byte, error) { return fileData, nil }),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected environment from file, got %q", cfg.Environment)
	}
	if cfg.Telegram.Token != "123456:file-token" {
		t.Fatalf("expected token from file, got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminIDs) != 2 || !cfg.Telegram.IsAdmin(42) || !cfg.Telegram.IsAdmin(99) {
		t.Fatalf("unexpected admin ids: %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Telegram.IsAdmin(7) {
		t.Fatal("id 7 must not be admin")
	}
	if cfg.Telegram.PollTimeoutSeconds != 10 || cfg.Telegram.RateLimitRPS != 0.5 || cfg.Telegram.DedupCacheSize != 256 {
		t.Fatalf("unexpected telegram tuning from file: %+v", cfg.Telegram)
	}
	if cfg.Telegram.RateLimitBurst != 3 {
		t.Fatalf("expected burst to keep its default, got %d", cfg.Telegram.RateLimitBurst)
	}
	if cfg.Server.Enabled {
		t.Fatal("expected server disabled from file")
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Fatalf("unexpected server addr: %s", cfg.Server.Addr())
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://astra.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.Path != "/var/lib/astra/astra.db" {
		t.Fatalf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Session.TimeoutSeconds != 120 || cfg.Session.ShardCount != 4 {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Session.JanitorIntervalSeconds != 60 {
		t.Fatalf("expected janitor interval to keep its default, got %d", cfg.Session.JanitorIntervalSeconds)
	}
	if cfg.Broadcast.DailyHour != 7 || cfg.Broadcast.MaxUsers != 50 || cfg.Broadcast.Concurrency != 8 {
		t.Fatalf("unexpected broadcast config: %+v", cfg.Broadcast)
	}
	if cfg.Observability.Logging.Level != "debug" || cfg.Observability.Logging.Format != "text" {
		t.Fatalf("unexpected logging config: %+v", cfg.Observability.Logging)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Fatal("expected metrics disabled from file")
	}
	if cfg.Observability.Metrics.PrometheusPort != 9090 {
		t.Fatalf("expected prometheus port to keep its default, got %d", cfg.Observability.Metrics.PrometheusPort)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Exporter != "zipkin" {
		t.Fatalf("unexpected tracing config: %+v", cfg.Observability.Tracing)
	}
	if cfg.Observability.Tracing.ZipkinEndpoint != "http://zipkin:9411/api/v2/spans" {
		t.Fatalf("unexpected zipkin endpoint: %s", cfg.Observability.Tracing.ZipkinEndpoint)
	}
	if meta.Source("telegram.token") != SourceFile {
		t.Fatalf("expected token source file, got %s", meta.Source("telegram.token"))
	}
	if meta.Source("session.timeout_seconds") != SourceFile {
		t.Fatalf("expected timeout source file, got %s", meta.Source("session.timeout_seconds"))
	}
	if meta.Source("telegram.rate_limit_burst") != SourceDefault {
		t.Fatalf("expected burst source default, got %s", meta.Source("telegram.rate_limit_burst"))
	}
	if meta.FilePath() != DefaultConfigFile {
		t.Fatalf("expected default config file path, got %q", meta.FilePath())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	fileData := []byte("telegram:\n  token: \"123456:file-token\"\ndatabase:\n  path: /file.db\n")
	cfg, meta, err := Load(
		WithFileReader(func(string) ([]byte, error) { return fileData, nil }),
		WithEnv(envMap{
			"TELEGRAM_TOKEN":       "999999:env-token",
			"ADMIN_IDS":            "7, 8",
			"DB_PATH":              "/tmp/env.db",
			"LOG_LEVEL":            "WARN",
			"LOG_FORMAT":           "text",
			"CONVERSATION_TIMEOUT": "600",
			"MAX_BROADCAST_USERS":  "250",
			"BROADCAST_HOUR":       "0",
			"HOST":                 "localhost",
			"PORT":                 "8081",
			"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
			"METRICS_PORT":         "9100",
			"ASTRA_ENV":            "production",
		}.Lookup),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != "999999:env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminIDs) != 2 || cfg.Telegram.AdminIDs[0] != 7 || cfg.Telegram.AdminIDs[1] != 8 {
		t.Fatalf("unexpected admin ids from env: %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Fatalf("expected db path from env, got %q", cfg.Database.Path)
	}
	if cfg.Observability.Logging.Level != "warn" {
		t.Fatalf("expected lowercased env log level, got %q", cfg.Observability.Logging.Level)
	}
	if cfg.Observability.Logging.Format != "text" {
		t.Fatalf("expected log format from env, got %q", cfg.Observability.Logging.Format)
	}
	if cfg.Session.TimeoutSeconds != 600 {
		t.Fatalf("expected timeout from env, got %d", cfg.Session.TimeoutSeconds)
	}
	if cfg.Broadcast.MaxUsers != 250 || cfg.Broadcast.DailyHour != 0 {
		t.Fatalf("unexpected broadcast config from env: %+v", cfg.Broadcast)
	}
	if cfg.Server.Addr() != "localhost:8081" {
		t.Fatalf("unexpected server addr from env: %s", cfg.Server.Addr())
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins from env: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Observability.Metrics.PrometheusPort != 9100 {
		t.Fatalf("expected metrics port from env, got %d", cfg.Observability.Metrics.PrometheusPort)
	}
	if cfg.Environment != "production" {
		t.Fatalf("expected environment from env, got %q", cfg.Environment)
	}
	if meta.Source("telegram.token") != SourceEnv {
		t.Fatalf("expected env token source, got %s", meta.Source("telegram.token"))
	}
	if meta.Source("database.path") != SourceEnv {
		t.Fatalf("expected env db path source, got %s", meta.Source("database.path"))
	}
}

func TestEnvAliases(t *testing.T) {
	cfg, _, err := Load(
		WithFileReader(noFile),
		WithEnv(envMap{
			"ASTRA_TELEGRAM_TOKEN": "123456:aliased-token",
			"ASTRA_DB_PATH":        "/alias.db",
			"ASTRA_SERVER_PORT":    "8090",
			"ENVIRONMENT":          "staging",
		}.Lookup),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != "123456:aliased-token" {
		t.Fatalf("expected token via alias, got %q", cfg.Telegram.Token)
	}
	if cfg.Database.Path != "/alias.db" {
		t.Fatalf("expected db path via alias, got %q", cfg.Database.Path)
	}
	if cfg.Server.Port != 8090 {
		t.Fatalf("expected port via alias, got %d", cfg.Server.Port)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected environment via alias, got %q", cfg.Environment)
	}
}

func TestCanonicalEnvWinsOverAlias(t *testing.T) {
	cfg, _, err := Load(
		WithFileReader(noFile),
		WithEnv(envMap{
			"TELEGRAM_TOKEN":       "123456:canonical",
			"ASTRA_TELEGRAM_TOKEN": "999999:aliased",
		}.Lookup),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != "123456:canonical" {
		t.Fatalf("expected canonical name to win, got %q", cfg.Telegram.Token)
	}
}

func TestLoadHonorsEnvConfigPath(t *testing.T) {
	expectedPath := "/etc/astra/astra.yaml"
	fileData := []byte("environment: production\n")

	cfg, meta, err := Load(
		WithEnv(envMap{"ASTRA_CONFIG_PATH": expectedPath}.Lookup),
		WithFileReader(func(path string) ([]byte, error) {
			if path != expectedPath {
				t.Fatalf("expected config path %q, got %q", expectedPath, path)
			}
			return fileData, nil
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Environment != "production" {
		t.Fatalf("expected environment from env-located file, got %q", cfg.Environment)
	}
	if meta.FilePath() != expectedPath {
		t.Fatalf("expected file path %q, got %q", expectedPath, meta.FilePath())
	}
}

func TestConfigPathOptionWinsOverEnv(t *testing.T) {
	explicitPath := "/opt/astra/explicit.yaml"
	_, _, err := Load(
		WithEnv(envMap{"ASTRA_CONFIG_PATH": "/tmp/ignored.yaml"}.Lookup),
		WithConfigPath(explicitPath),
		WithFileReader(func(path string) ([]byte, error) {
			if path != explicitPath {
				t.Fatalf("expected explicit config path %q, got %q", explicitPath, path)
			}
			return []byte("environment: production\n"), nil
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}

func TestOverridesWinOverEnv(t *testing.T) {
	env := "test"
	token := "123456:override-token"
	dbPath := "/override.db"
	level := "error"
	port := 8088

	cfg, meta, err := Load(
		WithFileReader(noFile),
		WithEnv(envMap{
			"TELEGRAM_TOKEN": "999999:env-token",
			"PORT":           "9999",
			"LOG_LEVEL":      "debug",
		}.Lookup),
		WithOverrides(Overrides{
			Environment:   &env,
			TelegramToken: &token,
			DBPath:        &dbPath,
			LogLevel:      &level,
			ServerPort:    &port,
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != token {
		t.Fatalf("expected override token, got %q", cfg.Telegram.Token)
	}
	if cfg.Server.Port != port {
		t.Fatalf("expected override port, got %d", cfg.Server.Port)
	}
	if cfg.Observability.Logging.Level != level {
		t.Fatalf("expected override log level, got %q", cfg.Observability.Logging.Level)
	}
	if cfg.Database.Path != dbPath || cfg.Environment != env {
		t.Fatalf("unexpected override results: %+v", cfg)
	}
	if meta.Source("server.port") != SourceOverride {
		t.Fatalf("expected override port source, got %s", meta.Source("server.port"))
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		env     envMap
		wantErr string
	}{
		{"short token", envMap{"TELEGRAM_TOKEN": "short"}, "malformed"},
		{"bad admin id", envMap{"ADMIN_IDS": "12,abc"}, "ADMIN_IDS"},
		{"zero admin id", envMap{"ADMIN_IDS": "0"}, "positive"},
		{"zero timeout", envMap{"CONVERSATION_TIMEOUT": "0"}, "session timeout"},
		{"timeout not a number", envMap{"CONVERSATION_TIMEOUT": "soon"}, "not a number"},
		{"broadcast hour out of range", envMap{"BROADCAST_HOUR": "24"}, "broadcast hour"},
		{"zero broadcast users", envMap{"MAX_BROADCAST_USERS": "0"}, "max users"},
		{"port out of range", envMap{"PORT": "70000"}, "out of range"},
		{"port not a number", envMap{"PORT": "eighty"}, "not a port number"},
		{"unknown log level", envMap{"LOG_LEVEL": "loud"}, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(WithFileReader(noFile), WithEnv(tt.env.Lookup))
			if err == nil {
				t.Fatalf("expected error for %v", tt.env)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMissingExplicitFileIsError(t *testing.T) {
	_, _, err := Load(
		WithEnv(envMap{}.Lookup),
		WithConfigPath("/etc/astra/missing.yaml"),
		WithFileReader(noFile),
	)
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("expected read error for explicit missing file, got %v", err)
	}
}

func TestMalformedFileIsError(t *testing.T) {
	_, _, err := Load(
		WithEnv(envMap{}.Lookup),
		WithFileReader(func(string) ([]byte, error) { return []byte("telegram: [not-a-map"), nil }),
	)
	if err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSaveCredentialsMergesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astra.yaml")
	existing := []byte("telegram:\n  enabled: false\nbroadcast:\n  daily_hour: 7\n")
	if err := os.WriteFile(path, existing, 0o600); err != nil {
		t.Fatalf("seed config file: %v", err)
	}

	written, err := SaveCredentials("123456:saved-token", []int64{42}, WithConfigPath(path))
	if err != nil {
		t.Fatalf("SaveCredentials returned error: %v", err)
	}
	if written != path {
		t.Fatalf("expected written path %q, got %q", path, written)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("parse saved file: %v", err)
	}
	telegram, ok := parsed["telegram"].(map[string]any)
	if !ok {
		t.Fatalf("missing telegram section: %v", parsed)
	}
	if telegram["token"] != "123456:saved-token" {
		t.Fatalf("unexpected saved token: %v", telegram["token"])
	}
	if enabled, ok := telegram["enabled"].(bool); !ok || enabled {
		t.Fatalf("expected pre-existing enabled=false to survive, got %v", telegram["enabled"])
	}
	broadcast, ok := parsed["broadcast"].(map[string]any)
	if !ok || broadcast["daily_hour"] != 7 {
		t.Fatalf("expected pre-existing broadcast section to survive, got %v", parsed["broadcast"])
	}

	cfg, _, err := Load(WithEnv(envMap{}.Lookup), WithConfigPath(path))
	if err != nil {
		t.Fatalf("Load after save returned error: %v", err)
	}
	if cfg.Telegram.Token != "123456:saved-token" || !cfg.Telegram.IsAdmin(42) {
		t.Fatalf("unexpected reloaded config: %+v", cfg.Telegram)
	}
	if cfg.Telegram.Enabled {
		t.Fatal("expected enabled=false to survive the save")
	}
	if cfg.Broadcast.DailyHour != 7 {
		t.Fatalf("expected broadcast hour 7 to survive, got %d", cfg.Broadcast.DailyHour)
	}
}
