package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/actions"
	"github.com/isdmx/e2bbox/config"
	"github.com/isdmx/e2bbox/logger"
)

const (
	serverName    = "e2bbox"
	serverVersion = "1.0.0"
	mcpPath       = "/mcp"
	metricsPath   = "/metrics"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	plugin    *actions.Plugin
	metrics   *prometheus.Registry
	mcpServer *server.MCPServer
	handlers  map[string]server.ToolHandlerFunc

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a new MCPServer with one tool per action. metrics may be nil.
func New(cfg *config.Config, log *zap.Logger, plugin *actions.Plugin, metrics *prometheus.Registry) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   log,
		plugin:   plugin,
		metrics:  metrics,
		handlers: make(map[string]server.ToolHandlerFunc),
	}

	// Log configuration parameters on startup
	log.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Bool("server.metrics_enabled", cfg.Server.MetricsEnabled),
		logger.APIKey(cfg.E2B.APIKey),
		zap.String("e2b.domain", cfg.E2B.Domain),
		zap.String("e2b.template", cfg.E2B.Template),
		zap.Int("e2b.sandbox_timeout_sec", cfg.E2B.SandboxTimeoutSec),
		zap.Int("e2b.request_timeout_sec", cfg.E2B.RequestTimeoutSec),
		zap.Int("session.idle_timeout_sec", cfg.Session.IdleTimeoutSec),
	)

	s.mcpServer = server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	for _, a := range plugin.Actions() {
		s.registerActionTool(a)
	}

	return s, nil
}

// ToolName returns the MCP tool name of an action
func ToolName(actionName string) string {
	return strings.ToLower(actionName)
}

// registerActionTool registers a as an MCP tool
func (s *MCPServer) registerActionTool(a *actions.Action) {
	tool := mcp.Tool{
		Name:        ToolName(a.Name),
		Description: toolDescription(a),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The chat message to act on",
				},
				"owner_id": map[string]any{
					"type":        "string",
					"description": "Identifier of the user whose sandbox is used (optional)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Code to run instead of the code found in text (optional)",
				},
			},
			Required: []string{"text"},
		},
	}

	handler := s.actionHandler(a)
	s.handlers[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

func toolDescription(a *actions.Action) string {
	var b strings.Builder
	b.WriteString(a.Description)
	if len(a.Similes) > 0 {
		fmt.Fprintf(&b, ". Also known as: %s.", strings.Join(a.Similes, ", "))
	}
	if len(a.Examples) > 0 && len(a.Examples[0]) > 0 {
		fmt.Fprintf(&b, " Example text: %s", a.Examples[0][0].Content.Text)
	}
	return b.String()
}

// actionHandler adapts a tool call to an action invocation
func (s *MCPServer) actionHandler(a *actions.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("text")
		if err != nil {
			return nil, fmt.Errorf("text parameter is required: %w", err)
		}

		msg := actions.Message{
			Text: text,
			Code: request.GetString("code", ""),
		}
		if owner := request.GetString("owner_id", ""); owner != "" {
			msg.Source = &actions.Source{ID: owner}
		}

		content := s.plugin.Invoke(ctx, a, msg, nil)

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: content.Text,
				},
			},
			StructuredContent: content,
			IsError:           content.Outcome != actions.OutcomeSuccess,
		}, nil
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP and blocks until it is shut down
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP",
		zap.Int("port", port),
		zap.String("path", mcpPath),
		zap.Bool("metrics", s.metricsEnabled()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Handler returns the HTTP routes: the MCP endpoint and, when enabled, metrics
func (s *MCPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(mcpPath, server.NewStreamableHTTPServer(s.mcpServer))
	if s.metricsEnabled() {
		mux.Handle(metricsPath, promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *MCPServer) metricsEnabled() bool {
	return s.config.Server.MetricsEnabled && s.metrics != nil
}

// Shutdown stops the HTTP server if it is running
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("stopping MCP HTTP server")
	return srv.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
