package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/agrobot/pkg/adapters/gemini"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string            `json:"model"`
	Messages []json.RawMessage `json:"messages"`
}

func newServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key-123", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	})
	return string(b)
}

func TestValidateAPIKey(t *testing.T) {
	for _, bad := range []string{"", "   ", "YOUR_API_KEY", "<your-api-key>", "\"changeme\"", "xxxxxxxx", "****"} {
		assert.ErrorIs(t, gemini.ValidateAPIKey(bad), gemini.ErrMissingAPIKey, bad)
	}
	assert.NoError(t, gemini.ValidateAPIKey("AIzaSyExampleRealLookingKey"))

	_, err := gemini.New("")
	assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
}

func TestGenerate_TextRequest(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, http.StatusOK, completion("Add organic matter."), &got)

	c, err := gemini.New("test-key-123", gemini.WithBaseURL(srv.URL+"/"), gemini.WithModel("models/gemini-2.5-flash"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", c.Model())

	resp, err := c.Generate(context.Background(), []domain.Message{
		domain.NewTextMessage(domain.RoleUser, "instruction"),
		domain.NewTextMessage(domain.RoleUser, "q1"),
		domain.NewTextMessage(domain.RoleModel, "a1"),
		domain.NewTextMessage(domain.RoleUser, "How do I improve soil fertility?"),
	})
	require.NoError(t, err)
	assert.True(t, resp.HasText)
	assert.Equal(t, "Add organic matter.", resp.Text)

	assert.Equal(t, "gemini-2.5-flash", got.Model)
	require.Len(t, got.Messages, 4)

	var third struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(got.Messages[2], &third))
	assert.Equal(t, "assistant", third.Role)
	assert.Equal(t, "a1", third.Content)
}

func TestGenerate_ImageRequest(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, http.StatusOK, completion("Looks like leaf rust."), &got)

	c, err := gemini.New("test-key-123", gemini.WithBaseURL(srv.URL))
	require.NoError(t, err)

	img := &domain.Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}
	_, err = c.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Parts: []domain.Part{domain.ImagePart(img), domain.TextPart("what is this?")}},
	})
	require.NoError(t, err)

	var msg struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	}
	require.Len(t, got.Messages, 1)
	require.NoError(t, json.Unmarshal(got.Messages[0], &msg))
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "image_url", msg.Content[0].Type)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", msg.Content[0].ImageURL.URL)
	assert.Equal(t, "text", msg.Content[1].Type)
	assert.Equal(t, "what is this?", msg.Content[1].Text)
}

func TestGenerate_APIError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Resource has been exhausted","type":"rate_limit","code":429}}`, nil)

	c, err := gemini.New("test-key-123", gemini.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []domain.Message{domain.NewTextMessage(domain.RoleUser, "hi")})
	require.ErrorIs(t, err, domain.ErrModelFailure)
	assert.Equal(t, "⚠️ Error from model: Resource has been exhausted", domain.UserMessage(err))
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"x","choices":[]}`, nil)

	c, err := gemini.New("test-key-123", gemini.WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), []domain.Message{domain.NewTextMessage(domain.RoleUser, "hi")})
	require.NoError(t, err)
	assert.False(t, resp.HasText)
	assert.Nil(t, resp.Raw)
}

func TestGenerate_RefusalFallsBackToRaw(t *testing.T) {
	srv := newServer(t, http.StatusOK,
		`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"","refusal":"blocked by safety"}}]}`, nil)

	c, err := gemini.New("test-key-123", gemini.WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), []domain.Message{domain.NewTextMessage(domain.RoleUser, "hi")})
	require.NoError(t, err)
	assert.False(t, resp.HasText)
	assert.Equal(t, "blocked by safety", resp.Raw)
}
