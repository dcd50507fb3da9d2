// Package mcp exposes a Storygraph as a Model Context Protocol server so
// agents can play and inspect stories.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/storygraph/internal/logging"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
)

// StoriesURI is the resource listing every story.
const StoriesURI = "storygraph://stories"

// Service is the slice of the Storygraph facade exposed over MCP.
type Service interface {
	StartStory(ctx context.Context, storyID, playerID int64) (domain.NodeView, error)
	MakeChoice(ctx context.Context, req domain.ChoiceRequest) (domain.ChoiceResult, error)
	CurrentNode(ctx context.Context, storyID, playerID int64) (domain.NodeView, error)
	Validate(ctx context.Context, storyID int64) (domain.ValidationResult, error)
	Mermaid(ctx context.Context, storyID, playerID int64) (string, error)
	ListStories(ctx context.Context, filter ports.StoryFilter) ([]domain.Story, error)
}

// Server wraps a Service and exposes it as an MCP Server.
type Server struct {
	service   Service
	mcpServer *server.MCPServer
	tools     map[string]server.ToolHandlerFunc
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(service Service, version string, opts ...Option) *Server {
	s := &Server{
		service:   service,
		mcpServer: server.NewMCPServer("storygraph-mcp", version),
		tools:     make(map[string]server.ToolHandlerFunc),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
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

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

type sessionArgs struct {
	StoryID  int64 `json:"story_id"`
	PlayerID int64 `json:"player_id"`
}

type choiceArgs struct {
	CurrentNodeID int64 `json:"current_node_id"`
	ChoiceID      int64 `json:"choice_id"`
	PlayerID      int64 `json:"player_id"`
}

type storyArgs struct {
	StoryID int64 `json:"story_id"`
}

type listArgs struct {
	Category      string `json:"category"`
	PublishedOnly bool   `json:"published_only"`
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

func (s *Server) registerTools() {
	playerOpt := mcp.WithNumber("player_id", mcp.Description("Player ID. Omit or 0 to play anonymously without saving progress."))

	s.addTool(mcp.NewTool("start_story",
		mcp.WithDescription("Start (or restart) a published story and return its starting node with the available choices."),
		mcp.WithNumber("story_id", mcp.Required(), mcp.Description("Story ID")),
		playerOpt,
		mcp.WithOutputSchema[domain.NodeView](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.addTool(mcp.NewTool("current_node",
		mcp.WithDescription("Return the player's current node, starting the story if there is no active session."),
		mcp.WithNumber("story_id", mcp.Required(), mcp.Description("Story ID")),
		playerOpt,
		mcp.WithOutputSchema[domain.NodeView](),
	), mcp.NewStructuredToolHandler(s.handleCurrent))

	s.addTool(mcp.NewTool("make_choice",
		mcp.WithDescription("Follow a choice out of the current node."),
		mcp.WithNumber("current_node_id", mcp.Required(), mcp.Description("Node the player is on")),
		mcp.WithNumber("choice_id", mcp.Required(), mcp.Description("Choice to follow")),
		playerOpt,
		mcp.WithOutputSchema[domain.ChoiceResult](),
	), mcp.NewStructuredToolHandler(s.handleChoice))

	s.addTool(mcp.NewTool("validate_story",
		mcp.WithDescription("Check a story for unreachable nodes, dead ends, missing start or ending nodes and duplicate choice letters."),
		mcp.WithNumber("story_id", mcp.Required(), mcp.Description("Story ID")),
		mcp.WithOutputSchema[domain.ValidationResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.addTool(mcp.NewTool("story_graph",
		mcp.WithDescription("Render a story as a Mermaid flowchart, highlighting the player's path when player_id is given."),
		mcp.WithNumber("story_id", mcp.Required(), mcp.Description("Story ID")),
		playerOpt,
	), mcp.NewTypedToolHandler(s.handleGraph))

	s.addTool(mcp.NewTool("list_stories",
		mcp.WithDescription("List stories, optionally filtered by category or publication."),
		mcp.WithString("category", mcp.Description("Only stories in this category")),
		mcp.WithBoolean("published_only", mcp.Description("Only published stories")),
	), mcp.NewTypedToolHandler(s.handleList))
}

// Handler methods for structured tools

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (domain.NodeView, error) {
	view, err := s.service.StartStory(ctx, args.StoryID, args.PlayerID)
	return view, s.toolError("start_story", err)
}

func (s *Server) handleCurrent(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (domain.NodeView, error) {
	view, err := s.service.CurrentNode(ctx, args.StoryID, args.PlayerID)
	return view, s.toolError("current_node", err)
}

func (s *Server) handleChoice(ctx context.Context, _ mcp.CallToolRequest, args choiceArgs) (domain.ChoiceResult, error) {
	result, err := s.service.MakeChoice(ctx, domain.ChoiceRequest{
		CurrentNodeID: args.CurrentNodeID,
		ChoiceID:      args.ChoiceID,
		PlayerID:      args.PlayerID,
	})
	return result, s.toolError("make_choice", err)
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args storyArgs) (domain.ValidationResult, error) {
	result, err := s.service.Validate(ctx, args.StoryID)
	return result, s.toolError("validate_story", err)
}

func (s *Server) handleGraph(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (*mcp.CallToolResult, error) {
	chart, err := s.service.Mermaid(ctx, args.StoryID, args.PlayerID)
	if err != nil {
		return mcp.NewToolResultError(s.toolError("story_graph", err).Error()), nil
	}
	return mcp.NewToolResultText(chart), nil
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest, args listArgs) (*mcp.CallToolResult, error) {
	stories, err := s.service.ListStories(ctx, ports.StoryFilter{Category: args.Category, PublishedOnly: args.PublishedOnly})
	if err != nil {
		return mcp.NewToolResultError(s.toolError("list_stories", err).Error()), nil
	}
	jsonBytes, err := json.Marshal(stories)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// toolError prefixes err with its kind so agents can tell a bad request from
// an outage.
func (s *Server) toolError(tool string, err error) error {
	if err == nil {
		return nil
	}
	kind := "internal"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		kind = "invalid_transition"
	case errors.Is(err, domain.ErrPreconditionFailed):
		kind = "precondition_failed"
	default:
		s.logger.Error("MCP tool failed", "tool", tool, "err", err)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StoriesURI, "Stories",
		mcp.WithResourceDescription("Every story with its metadata"),
		mcp.WithMIMEType("application/json"),
	), s.readStories)
}

func (s *Server) readStories(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stories, err := s.service.ListStories(ctx, ports.StoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	jsonBytes, err := json.Marshal(stories)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      StoriesURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
