package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/internal/config"
	"github.com/aretw0/agrobot/pkg/adapters/gemini"
	httpAdapter "github.com/aretw0/agrobot/pkg/adapters/http"
	"github.com/aretw0/agrobot/pkg/adapters/mcp"
	"github.com/aretw0/agrobot/pkg/adapters/memory"
	"github.com/aretw0/agrobot/pkg/adapters/redis"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/history"
	"github.com/aretw0/agrobot/pkg/metrics"
	"github.com/aretw0/agrobot/pkg/model"
	"github.com/aretw0/agrobot/pkg/normalize"
	"github.com/aretw0/agrobot/pkg/persistence/middleware"
	"github.com/aretw0/agrobot/pkg/ports"
	"github.com/aretw0/agrobot/pkg/prompt"
	"github.com/aretw0/agrobot/pkg/topic"
	backend "github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// App is a Bot wired from configuration, plus what the transports need.
type App struct {
	Config  *config.Config
	Bot     *agrobot.Bot
	Gate    *topic.Gate
	Metrics *metrics.Collector
	Model   string
	Logger  *slog.Logger

	closers []func() error
}

type AppOption func(*appOptions)

type appOptions struct {
	generator ports.Generator
}

// WithGenerator replaces the Gemini client, mainly for tests and offline runs.
func WithGenerator(g ports.Generator) AppOption {
	return func(o *appOptions) {
		o.generator = g
	}
}

// NewApp builds the pipeline described by cfg. The caller must Close it.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Logger: logger}

	generator := o.generator
	if generator == nil {
		client, err := gemini.New(cfg.Gemini.APIKey,
			gemini.WithBaseURL(cfg.Gemini.BaseURL),
			gemini.WithModel(cfg.Gemini.Model),
			gemini.WithTemperature(float32(cfg.Gemini.Temperature)),
			gemini.WithMaxTokens(cfg.Gemini.MaxTokens),
		)
		if err != nil {
			return nil, err
		}
		generator = client
		app.Model = client.Model()
	}

	manager, err := app.newHistory(ctx, cfg.History, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	gate, err := newGate(cfg.Topic)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Gate = gate

	hooks := domain.Hooks{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector()
		hooks = hooks.Merge(app.Metrics.Hooks())
	}

	normalizerOpts := []normalize.Option{
		normalize.WithMaxTextBytes(cfg.Input.MaxTextBytes),
		normalize.WithMaxImageBytes(cfg.Input.MaxImageBytes),
		normalize.WithMaxImageDimension(cfg.Input.MaxImageDimension),
		normalize.WithMaxImagePixels(cfg.Input.MaxImagePixels),
	}
	if cfg.Input.DefaultPrompt != "" {
		normalizerOpts = append(normalizerOpts, normalize.WithDefaultPrompt(cfg.Input.DefaultPrompt))
	}

	app.Bot = agrobot.New(generator,
		agrobot.WithLogger(logger),
		agrobot.WithHooks(hooks),
		agrobot.WithHistory(manager),
		agrobot.WithNormalizer(normalize.New(normalizerOpts...)),
		agrobot.WithGate(gate),
		agrobot.WithAssembler(prompt.NewAssembler(cfg.History.Window)),
		agrobot.WithModelOptions(
			model.WithTimeout(cfg.Gemini.Timeout),
			model.WithBulletFormatting(cfg.Gemini.FormatBullets),
		),
	)
	return app, nil
}

func (a *App) newHistory(ctx context.Context, cfg config.HistoryConfig, logger *slog.Logger) (*history.Manager, error) {
	mode, err := history.ParseSyncMode(cfg.Sync)
	if err != nil {
		return nil, err
	}
	scope, err := history.ParseScope(cfg.Scope)
	if err != nil {
		return nil, err
	}

	opts := []history.Option{
		history.WithMaxTurns(cfg.MaxTurns),
		history.WithSyncMode(mode),
		history.WithScope(scope),
		history.WithLogger(logger),
	}

	var store ports.HistoryStore
	switch cfg.Backend {
	case "", "memory":
		store = memory.NewStore(
			memory.WithTTL(cfg.Memory.TTL),
			memory.WithMaxConversations(cfg.Memory.MaxConversations),
		)
	case "redis":
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.Redis.Addr, err)
		}

		store = redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix+"history:"),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if mode == history.SyncLocked {
			opts = append(opts, history.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix), cfg.LockTTL))
		}
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}

	mws, err := cfg.Middlewares()
	if err != nil {
		return nil, err
	}
	return history.NewManager(middleware.Chain(store, mws...), opts...), nil
}

// newRedisClient accepts either host:port or a redis:// URL.
func newRedisClient(cfg config.RedisConfig) (*backend.Client, error) {
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		opts, err := backend.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		return backend.NewClient(opts), nil
	}
	return backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

func newGate(cfg config.TopicConfig) (*topic.Gate, error) {
	extra, err := topic.LoadKeywords(cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	return topic.NewGate(append(extra, cfg.Extra...)...), nil
}

// Info describes the running configuration for GET /info.
func (a *App) Info() httpAdapter.Info {
	h := a.Bot.History()
	return httpAdapter.Info{
		Name:    "agrobot",
		Version: strings.TrimSpace(agrobot.Version),
		Model:   a.Model,
		History: httpAdapter.HistoryInfo{
			Backend:  a.Config.History.Backend,
			Scope:    string(h.Scope()),
			Sync:     string(h.SyncMode()),
			MaxTurns: h.MaxTurns(),
		},
	}
}

// HTTPHandler builds the web surface for the app.
func (a *App) HTTPHandler() (http.Handler, error) {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(a.Logger),
		httpAdapter.WithAllowedOrigins(a.Config.Server.CORSOrigins...),
		httpAdapter.WithSessionCookie(a.Config.Server.SessionCookie, false),
		httpAdapter.WithMaxBodyBytes(int64(a.Config.Input.MaxImageBytes) + int64(a.Config.Input.MaxTextBytes) + 1<<20),
		httpAdapter.WithInfo(a.Info()),
	}
	if a.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(a.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(a.Bot, opts...)
}

// MCPServer builds the MCP surface for the app.
func (a *App) MCPServer() *mcp.Server {
	return mcp.NewServer(a.Bot,
		mcp.WithLogger(a.Logger),
		mcp.WithKeywords(a.Gate.Keywords()),
	)
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
