// Package gemini adapts Google's Gemini models to ports.Generator through
// the OpenAI-compatible chat completions endpoint.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/agrobot/pkg/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible API root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

	// DefaultModel is the multimodal model used when none is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultTimeout bounds a single HTTP exchange with the provider.
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when the API key is empty or a known placeholder.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set: export a real Gemini API key before starting")

var placeholders = map[string]struct{}{
	"your_api_key":        {},
	"your-api-key":        {},
	"your_api_key_here":   {},
	"your-api-key-here":   {},
	"your_gemini_api_key": {},
	"gemini_api_key":      {},
	"api_key":             {},
	"changeme":            {},
	"change-me":           {},
	"replace_me":          {},
	"xxx":                 {},
	"todo":                {},
}

// ValidateAPIKey rejects empty keys and obvious placeholders.
func ValidateAPIKey(key string) error {
	k := strings.ToLower(strings.Trim(strings.TrimSpace(key), `"'<>`))
	if k == "" {
		return ErrMissingAPIKey
	}
	if _, ok := placeholders[k]; ok || strings.Trim(k, "x*.") == "" {
		return fmt.Errorf("%w (got placeholder %q)", ErrMissingAPIKey, key)
	}
	return nil
}

// Client implements ports.Generator.
type Client struct {
	api         *openai.Client
	model       string
	baseURL     string
	httpClient  *http.Client
	temperature float32
	maxTokens   int
}

// Option configures the Client.
type Option func(*Client)

// WithModel selects the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = strings.TrimPrefix(model, "models/")
		}
	}
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client (timeouts, proxies, tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTemperature sets the sampling temperature (0 uses the provider default).
func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithMaxTokens bounds the completion length (0 uses the provider default).
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates a Gemini client. It fails fast on a missing or placeholder key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}

	c := &Client{
		model:      DefaultModel,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(cfg)
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends the contents as one chat completion request.
func (c *Client) Generate(ctx context.Context, contents []domain.Message) (domain.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            toAPIMessages(contents),
		Temperature:         c.temperature,
		MaxCompletionTokens: c.maxTokens,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return domain.Response{}, fmt.Errorf("%w: %s", domain.ErrModelFailure, apiErr.Message)
		}
		return domain.Response{}, fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
	}

	return fromAPIResponse(resp), nil
}

// partsPayload is the fallback view of a reply that came back as content parts.
type partsPayload []openai.ChatMessagePart

func (p partsPayload) String() string {
	var texts []string
	for _, part := range p {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func fromAPIResponse(resp openai.ChatCompletionResponse) domain.Response {
	if len(resp.Choices) == 0 {
		return domain.Response{}
	}

	msg := resp.Choices[0].Message
	switch {
	case msg.Content != "":
		return domain.Response{HasText: true, Text: msg.Content, Raw: resp}
	case len(msg.MultiContent) > 0:
		return domain.Response{Raw: partsPayload(msg.MultiContent)}
	case msg.Refusal != "":
		return domain.Response{Raw: msg.Refusal}
	default:
		return domain.Response{HasText: true, Text: ""}
	}
}

func toAPIMessages(msgs []domain.Message) []openai.ChatCompletionMessage {
	res := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}

		if !m.HasImage() {
			res = append(res, openai.ChatCompletionMessage{
				Role:    role,
				Content: m.Text(),
			})
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Kind {
			case domain.PartImage:
				if p.Image == nil {
					continue
				}
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL(p.Image),
						Detail: openai.ImageURLDetailAuto,
					},
				})
			case domain.PartText:
				if strings.TrimSpace(p.Text) == "" {
					continue
				}
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}

		res = append(res, openai.ChatCompletionMessage{
			Role:         role,
			MultiContent: parts,
		})
	}
	return res
}

func dataURL(img *domain.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
