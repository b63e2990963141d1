package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/internal/config"
	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedGenerator string

func (g cannedGenerator) Generate(ctx context.Context, contents []domain.Message) (domain.Response, error) {
	return domain.Response{HasText: true, Text: string(g)}, nil
}

func TestNewApp_MemoryDefaults(t *testing.T) {
	cfg := config.Default()
	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("Mulch the beds.")))
	require.NoError(t, err)
	defer app.Close()

	reply := app.Bot.Respond(context.Background(), agrobot.Request{Text: "How do I keep soil moist?"})
	assert.Equal(t, "Mulch the beds.", reply)

	info := app.Info()
	assert.Equal(t, "memory", info.History.Backend)
	assert.Equal(t, "global", info.History.Scope)
	assert.Equal(t, "locked", info.History.Sync)
	assert.Equal(t, 8, info.History.MaxTurns)
	require.NotNil(t, app.Metrics)
}

func TestNewApp_MemoryConversationLimit(t *testing.T) {
	cfg := config.Default()
	cfg.History.Scope = "session"
	cfg.History.Memory.MaxConversations = 1

	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("Mulch the beds.")))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	app.Bot.Respond(ctx, agrobot.Request{SessionID: "first", Text: "soil moisture tips"})
	app.Bot.Respond(ctx, agrobot.Request{SessionID: "second", Text: "soil moisture tips"})

	n, err := app.Bot.History().Len(ctx, "first")
	require.NoError(t, err)
	assert.Zero(t, n, "oldest session evicted")
	n, err = app.Bot.History().Len(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewApp_GeminiKeyRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Gemini.APIKey = "your_api_key_here"

	_, err := NewApp(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestNewApp_GeminiClient(t *testing.T) {
	cfg := config.Default()
	cfg.Gemini.APIKey = "test-key-123"
	cfg.Gemini.Model = "models/gemini-2.5-pro"

	app, err := NewApp(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, "gemini-2.5-pro", app.Info().Model)
}

func TestNewApp_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.Default()
	cfg.History.Backend = "redis"
	cfg.History.Scope = "session"
	cfg.History.Redis.Addr = mr.Addr()
	cfg.History.Redis.TTL = time.Hour

	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("Rotate crops.")))
	require.NoError(t, err)
	defer app.Close()

	reply := app.Bot.Respond(context.Background(), agrobot.Request{SessionID: "s1", Text: "crop rotation tips"})
	assert.Equal(t, "Rotate crops.", reply)

	key := "agrobot:history:s1"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
	assert.False(t, mr.Exists("agrobot:lock:s1"), "turn lock released")
}

func TestNewApp_EncryptedRedisHistory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.Default()
	cfg.History.Backend = "redis"
	cfg.History.Redis.Addr = mr.Addr()
	cfg.History.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	cfg.History.RedactPatterns = []string{`\d{3}-\d{4}`}

	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("Call the co-op.")))
	require.NoError(t, err)
	defer app.Close()

	app.Bot.Respond(context.Background(), agrobot.Request{Text: "my farm phone is 555-1234, which crop fits?"})

	entries, err := mr.List("agrobot:history:global")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Contains(t, e, "enc:v1:")
		assert.NotContains(t, e, "crop")
	}

	msgs, err := app.Bot.History().Window(context.Background(), domain.GlobalConversation, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "my farm phone is ***, which crop fits?", msgs[0].Text())
	assert.Equal(t, "Call the co-op.", msgs[1].Text())
}

func TestNewApp_InvalidEncryptionKey(t *testing.T) {
	cfg := config.Default()
	cfg.History.EncryptionKey = "not-a-key"

	_, err := NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("x")))
	assert.ErrorContains(t, err, "history.encryption_key")
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.History.Backend = "redis"
	cfg.History.Redis.Addr = addr

	_, err = NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("x")))
	assert.ErrorContains(t, err, "redis unavailable")
}

func TestNewApp_KeywordsFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/keywords.yaml"
	require.NoError(t, writeFile(path, "keywords:\n  - aquaponics\n"))

	cfg := config.Default()
	cfg.Topic.KeywordsFile = path
	cfg.Topic.Extra = []string{"beekeeping"}

	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithGenerator(cannedGenerator("ok")))
	require.NoError(t, err)
	defer app.Close()

	assert.True(t, app.Gate.IsInDomain("Is aquaponics profitable?"))
	assert.True(t, app.Gate.IsInDomain("Beekeeping for beginners"))
}

func TestApp_HTTPHandler(t *testing.T) {
	app, err := NewApp(context.Background(), config.Default(), logging.NewNop(), WithGenerator(cannedGenerator("Water at dawn.")))
	require.NoError(t, err)
	defer app.Close()

	handler, err := app.HTTPHandler()
	require.NoError(t, err)

	form := url.Values{"user_input": {"best irrigation schedule?"}}
	req := httptest.NewRequest("POST", "/get_response", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Water at dawn.")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `agrobot_requests_total{outcome="ok"} 1`)
}

func TestApp_MCPServer(t *testing.T) {
	app, err := NewApp(context.Background(), config.Default(), logging.NewNop(), WithGenerator(cannedGenerator("ok")))
	require.NoError(t, err)
	defer app.Close()

	s := app.MCPServer()
	assert.NotNil(t, s.MCPServer().GetTool("ask_agronomist"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), -4))

	logger, err = NewLogger(config.LogConfig{Level: "warn", Format: "json"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), -4))

	_, err = NewLogger(config.LogConfig{Level: "loud", Format: "text"}, false)
	assert.Error(t, err)
}
