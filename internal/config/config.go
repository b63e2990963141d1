// Package config loads the agrobot configuration from built-in defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/adapters/gemini"
	"github.com/aretw0/agrobot/pkg/history"
	"github.com/aretw0/agrobot/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (AGROBOT_SERVER_ADDR -> server.addr).
const EnvPrefix = "AGROBOT_"

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini" yaml:"gemini"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Input   InputConfig   `mapstructure:"input" yaml:"input"`
	Topic   TopicConfig   `mapstructure:"topic" yaml:"topic"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	SessionCookie   string        `mapstructure:"session_cookie" yaml:"session_cookie"`
}

type GeminiConfig struct {
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Model         string        `mapstructure:"model" yaml:"model"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature   float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	FormatBullets bool          `mapstructure:"format_bullets" yaml:"format_bullets"`
}

type HistoryConfig struct {
	MaxTurns int           `mapstructure:"max_turns" yaml:"max_turns"`
	Window   int           `mapstructure:"window" yaml:"window"`
	Sync     string        `mapstructure:"sync" yaml:"sync"`
	Scope    string        `mapstructure:"scope" yaml:"scope"`
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	Memory   MemoryConfig  `mapstructure:"memory" yaml:"memory"`
	Redis    RedisConfig   `mapstructure:"redis" yaml:"redis"`

	// EncryptionKey is a base64 AES-256 key. When set, stored messages are
	// sealed; FallbackKeys still decrypt entries written before a rotation.
	EncryptionKey  string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys   []string `mapstructure:"encryption_fallback_keys" yaml:"encryption_fallback_keys"`
	RedactPatterns []string `mapstructure:"redact_patterns" yaml:"redact_patterns"`
}

// Middlewares builds the store wrappers requested by the history section.
// Redaction runs before encryption so masked text is what gets sealed.
func (h HistoryConfig) Middlewares() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(h.RedactPatterns) > 0 {
		mw, err := middleware.NewRedactionMiddleware(h.RedactPatterns)
		if err != nil {
			return nil, fmt.Errorf("history.redact_patterns: %w", err)
		}
		mws = append(mws, mw)
	}
	if h.EncryptionKey == "" {
		if len(h.FallbackKeys) > 0 {
			return nil, errors.New("history.encryption_fallback_keys requires history.encryption_key")
		}
		return mws, nil
	}

	active, err := middleware.ParseKey(h.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("history.encryption_key: %w", err)
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range h.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("history.encryption_fallback_keys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	return append(mws, mw), nil
}

// MemoryConfig bounds the in-process backend. Zero values disable a limit.
type MemoryConfig struct {
	TTL              time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxConversations int           `mapstructure:"max_conversations" yaml:"max_conversations"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type InputConfig struct {
	MaxTextBytes      int    `mapstructure:"max_text_bytes" yaml:"max_text_bytes"`
	MaxImageBytes     int    `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
	MaxImageDimension int    `mapstructure:"max_image_dimension" yaml:"max_image_dimension"`
	MaxImagePixels    int    `mapstructure:"max_image_pixels" yaml:"max_image_pixels"`
	DefaultPrompt     string `mapstructure:"default_prompt" yaml:"default_prompt"`
}

type TopicConfig struct {
	KeywordsFile string   `mapstructure:"keywords_file" yaml:"keywords_file"`
	Extra        []string `mapstructure:"extra" yaml:"extra"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// defaults is the lowest configuration layer. Keys double as the set of
// recognized environment overrides.
func defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"addr":             ":8080",
			"read_timeout":     "30s",
			"write_timeout":    "120s",
			"shutdown_timeout": "10s",
			"cors_origins":     []any{"*"},
			"session_cookie":   "agrobot_session",
		},
		"gemini": map[string]any{
			"api_key":        "",
			"base_url":       gemini.DefaultBaseURL,
			"model":          gemini.DefaultModel,
			"timeout":        "60s",
			"temperature":    0.0,
			"max_tokens":     0,
			"format_bullets": false,
		},
		"history": map[string]any{
			"max_turns": 8,
			"window":    8,
			"sync":      string(history.SyncLocked),
			"scope":     string(history.ScopeGlobal),
			"backend":   "memory",
			"lock_ttl":  "2m",

			"encryption_key":           "",
			"encryption_fallback_keys": []any{},
			"redact_patterns":          []any{},
			"memory": map[string]any{
				"ttl":               "24h",
				"max_conversations": 10000,
			},
			"redis": map[string]any{
				"addr":     "localhost:6379",
				"password": "",
				"db":       0,
				"prefix":   "agrobot:",
				"ttl":      "24h",
			},
		},
		"input": map[string]any{
			"max_text_bytes":      4096,
			"max_image_bytes":     10 << 20,
			"max_image_dimension": 2048,
			"max_image_pixels":    40_000_000,
			"default_prompt":      "",
		},
		"topic": map[string]any{
			"keywords_file": "",
			"extra":         []any{},
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"metrics": map[string]any{
			"enabled": true,
		},
	}
}

// aliases are environment variables honored without the prefix.
var aliases = map[string]string{
	"GEMINI_API_KEY":  "gemini.api_key",
	"GEMINI_BASE_URL": "gemini.base_url",
	"GEMINI_MODEL":    "gemini.model",
	"REDIS_URL":       "history.redis.addr",
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error. lookup is usually os.LookupEnv.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	tree := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		merge(tree, file)
	}

	if lookup != nil {
		applyEnv(tree, lookup)
	}

	return decode(tree)
}

// Validate checks value ranges. requireKey enables the API key check, which
// only matters for commands that talk to the model.
func (c *Config) Validate(requireKey bool) error {
	var errs []error

	if requireKey {
		if err := gemini.ValidateAPIKey(c.Gemini.APIKey); err != nil {
			errs = append(errs, err)
		}
	}
	if c.History.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("history.max_turns must be at least 1, got %d", c.History.MaxTurns))
	}
	if c.History.Memory.TTL < 0 || c.History.Memory.MaxConversations < 0 {
		errs = append(errs, fmt.Errorf("history.memory limits must not be negative"))
	}
	if c.History.Window < 0 {
		errs = append(errs, fmt.Errorf("history.window must not be negative, got %d", c.History.Window))
	}
	if _, err := history.ParseSyncMode(c.History.Sync); err != nil {
		errs = append(errs, err)
	}
	if _, err := history.ParseScope(c.History.Scope); err != nil {
		errs = append(errs, err)
	}
	switch c.History.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("history.backend must be memory or redis, got %q", c.History.Backend))
	}
	if _, err := c.History.Middlewares(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Gemini.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gemini.timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// EnvKeys lists every recognized environment variable, sorted.
func EnvKeys() []string {
	var keys []string
	walk(defaults(), "", func(path string) {
		keys = append(keys, envName(path))
	})
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decode(tree map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func applyEnv(tree map[string]any, lookup func(string) (string, bool)) {
	walk(defaults(), "", func(path string) {
		if v, ok := lookup(envName(path)); ok && v != "" {
			set(tree, path, v)
		}
	})
	// Prefixed variables win over aliases.
	for env, path := range aliases {
		if _, ok := lookup(envName(path)); ok {
			continue
		}
		if v, ok := lookup(env); ok && v != "" {
			set(tree, path, v)
		}
	}
}

func envName(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

// walk calls fn with the dotted path of every leaf.
func walk(tree map[string]any, prefix string, fn func(string)) {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := tree[k].(map[string]any); ok {
			walk(sub, path, fn)
			continue
		}
		fn(path)
	}
}

func set(tree map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[p] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}
