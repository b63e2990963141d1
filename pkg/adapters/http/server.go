package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/normalize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed static
var staticFiles embed.FS

const (
	// DefaultSessionCookie names the cookie carrying the conversation id.
	DefaultSessionCookie = "agrobot_session"
	// DefaultMaxBodyBytes bounds a whole request, image included.
	DefaultMaxBodyBytes = 12 << 20

	multipartMemory = 4 << 20
)

// Bot is the part of agrobot.Bot the HTTP surface needs.
type Bot interface {
	Respond(ctx context.Context, req agrobot.Request) string
	Reset(ctx context.Context, sessionID string) error
}

// HistoryInfo describes how conversations are kept, for GET /info.
type HistoryInfo struct {
	Backend  string `json:"backend"`
	Scope    string `json:"scope"`
	Sync     string `json:"sync"`
	MaxTurns int    `json:"max_turns"`
}

// Info is the body of GET /info.
type Info struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Model   string      `json:"model,omitempty"`
	History HistoryInfo `json:"history"`
}

// Server serves the chat page and the JSON endpoints in front of a Bot.
type Server struct {
	Bot Bot

	logger       *slog.Logger
	origins      []string
	cookieName   string
	secureCookie bool
	maxBodyBytes int64
	metrics      http.Handler
	info         Info
}

type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins restricts CORS. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithSessionCookie sets the name of the session cookie.
func WithSessionCookie(name string, secure bool) Option {
	return func(s *Server) {
		if name != "" {
			s.cookieName = name
		}
		s.secureCookie = secure
	}
}

// WithMaxBodyBytes caps the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithInfo sets the payload of GET /info.
func WithInfo(info Info) Option {
	return func(s *Server) {
		s.info = info
	}
}

// NewHandler creates the HTTP handler for the bot.
// It fails if the embedded API description does not validate.
func NewHandler(bot Bot, opts ...Option) (http.Handler, error) {
	s := &Server{
		Bot:          bot,
		logger:       logging.NewNop(),
		origins:      []string{"*"},
		cookieName:   DefaultSessionCookie,
		maxBodyBytes: DefaultMaxBodyBytes,
		info:         Info{Name: "agrobot", Version: agrobot.Version},
	}
	for _, opt := range opts {
		opt(s)
	}

	spec, err := LoadSpec(context.Background(), s.info.Version)
	if err != nil {
		return nil, err
	}
	specYAML, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI spec: %w", err)
	}
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.enableCORS)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		s.session(w, r)
		http.ServeFileFS(w, r, assets, "index.html")
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(assets)))

	r.Post("/get_response", s.GetResponse)
	r.Post("/get", s.GetReply)
	r.Post("/reset", s.ResetConversation)
	r.Get("/health", s.Health)
	r.Get("/info", s.Info)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(specYAML)
	})
	r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return r, nil
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.origins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Agrobot API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetResponse handles POST /get_response. The answer, refusal or error text
// is always returned with status 200.
func (s *Server) GetResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	req, err := s.readForm(r)
	if err != nil {
		s.logger.Warn("GetResponse: unreadable request", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"response": domain.UserMessage(err)})
		return
	}
	req.SessionID = sessionID

	writeJSON(w, http.StatusOK, map[string]string{"response": s.Bot.Respond(r.Context(), req)})
}

func (s *Server) readForm(r *http.Request) (agrobot.Request, error) {
	var req agrobot.Request

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return req, formError(err)
		}
	} else if err := r.ParseForm(); err != nil {
		return req, formError(err)
	}
	req.Text = r.FormValue("user_input")

	if r.MultipartForm == nil {
		return req, nil
	}
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, formError(err)
	}
	defer file.Close()

	req.Image, err = io.ReadAll(file)
	if err != nil {
		return req, formError(err)
	}
	return req, nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request exceeds %d bytes", domain.ErrInvalidInput, tooLarge.Limit)
	}
	return fmt.Errorf("%w: malformed form data", domain.ErrInvalidInput)
}

// LegacyRequest is the JSON body of POST /get.
type LegacyRequest struct {
	Msg   string `json:"msg"`
	Image string `json:"image"`
}

// GetReply handles POST /get, the JSON variant with a data URL image.
func (s *Server) GetReply(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var body LegacyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("GetReply: Invalid request body", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{
			"reply": domain.UserMessage(fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput)),
		})
		return
	}

	img, err := normalize.DecodeDataURL(body.Image)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"reply": domain.UserMessage(err)})
		return
	}

	reply := s.Bot.Respond(r.Context(), agrobot.Request{
		SessionID: sessionID,
		Text:      body.Msg,
		Image:     img,
	})
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// ResetConversation handles POST /reset.
func (s *Server) ResetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	if err := s.Bot.Reset(r.Context(), sessionID); err != nil {
		s.logger.Error("Reset failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

// session returns the caller's session id, issuing a cookie on first contact.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
