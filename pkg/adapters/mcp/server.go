package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/internal/logging"
	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/normalize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const topicsURI = "agrobot://topics"

// Bot is the part of agrobot.Bot exposed as tools.
type Bot interface {
	Ask(ctx context.Context, req agrobot.Request) (string, error)
	Reset(ctx context.Context, sessionID string) error
}

// AskArgs are the arguments of the ask_agronomist tool.
type AskArgs struct {
	Question  string `json:"question"`
	Image     string `json:"image,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Answer is the structured result of ask_agronomist.
type Answer struct {
	Reply   string   `json:"reply" jsonschema_description:"Answer text, refusal or error message"`
	Steps   []string `json:"steps" jsonschema_description:"The reply split into its steps"`
	Outcome string   `json:"outcome" jsonschema_description:"ok, topic_rejected, empty_input, invalid_input, decode_failed, empty_response, model_failure or internal"`
}

// ResetArgs are the arguments of the reset_conversation tool.
type ResetArgs struct {
	SessionID string `json:"session_id,omitempty"`
}

// Server exposes the bot over the Model Context Protocol.
type Server struct {
	bot       Bot
	keywords  []string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithKeywords publishes the topic keywords as a resource.
func WithKeywords(keywords []string) Option {
	return func(s *Server) {
		s.keywords = keywords
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(bot Bot, opts ...Option) *Server {
	s := &Server{
		bot:    bot,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = server.NewMCPServer("agrobot-mcp", strings.TrimSpace(agrobot.Version),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Agricultural assistant. Off-topic questions are refused."),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// SSEHandler returns the /sse and /message endpoints. baseURL is the public
// address clients use to post messages.
func (s *Server) SSEHandler(baseURL string) http.Handler {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	return mux
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.SSEHandler(baseURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	askTool := mcp.NewTool("ask_agronomist",
		mcp.WithDescription("Ask an agricultural question (crops, soil, pests, irrigation, livestock). Off-topic text questions are refused."),
		mcp.WithString("question", mcp.Description("The question. May be empty when an image is given.")),
		mcp.WithString("image", mcp.Description("Optional photo as a data URL (data:image/jpeg;base64,...) or bare base64")),
		mcp.WithString("session_id", mcp.Description("Conversation to continue (optional)")),
		mcp.WithOutputSchema[Answer](),
	)
	s.mcpServer.AddTool(askTool, mcp.NewStructuredToolHandler(s.handleAsk))

	resetTool := mcp.NewTool("reset_conversation",
		mcp.WithDescription("Forget the conversation history."),
		mcp.WithString("session_id", mcp.Description("Conversation to clear (optional)")),
	)
	s.mcpServer.AddTool(resetTool, mcp.NewTypedToolHandler(s.handleReset))
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest, args AskArgs) (Answer, error) {
	img, err := normalize.DecodeDataURL(args.Image)
	if err != nil {
		s.logger.Warn("MCP Ask: image rejected", "error", err)
		return answer("", err), nil
	}

	reply, err := s.bot.Ask(ctx, agrobot.Request{
		SessionID: args.SessionID,
		Text:      args.Question,
		Image:     img,
	})
	return answer(reply, err), nil
}

func answer(reply string, err error) Answer {
	if err != nil {
		reply = domain.UserMessage(err)
	}
	return Answer{
		Reply:   reply,
		Steps:   domain.SplitSteps(reply),
		Outcome: domain.Kind(err),
	}
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args ResetArgs) (*mcp.CallToolResult, error) {
	if err := s.bot.Reset(ctx, args.SessionID); err != nil {
		s.logger.Error("MCP Reset failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("reset failed: %v", err)), nil
	}
	return mcp.NewToolResultText("conversation cleared"), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(topicsURI, "Accepted topic keywords",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.keywords)
		if err != nil {
			return nil, fmt.Errorf("failed to encode keywords: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      topicsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
