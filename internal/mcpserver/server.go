// Package mcpserver exposes the chat relay as Model Context Protocol tools
// over stdio, so MCP clients can hold sessions with the configured backend.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/flemzord/chatrelay/internal/chat"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Chatter is the part of chat.Orchestrator the tools use.
type Chatter interface {
	Turn(ctx context.Context, req chat.Request) (chat.Response, error)
	ListModels(ctx context.Context) []provider.Model
	History(id string) (session.Session, bool)
	ClearHistory(id string)
}

// Server holds the MCP server and the orchestrator behind its tools.
type Server struct {
	chat   Chatter
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New registers the chat, get_history, clear_history and list_models tools.
func New(c Chatter, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		chat:   c,
		mcp:    server.NewMCPServer("chatrelay", version, server.WithToolCapabilities(false)),
		logger: logger,
	}

	s.mcp.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send a message to the model. Pass session_id to continue a conversation; the returned session_id must be used for the next turn."),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message text")),
		mcp.WithString("session_id", mcp.Description("Session to continue; omit to start a new one")),
		mcp.WithString("model", mcp.Description("Model name; the backend default applies when omitted")),
	), s.handleChat)

	s.mcp.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Return the ordered turns of a session."),
		mcp.WithString("session_id", mcp.Required()),
	), s.handleHistory)

	s.mcp.AddTool(mcp.NewTool("clear_history",
		mcp.WithDescription("Empty a session's history, keeping the session."),
		mcp.WithString("session_id", mcp.Required()),
	), s.handleClear)

	s.mcp.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List the models the backend can serve."),
	), s.handleListModels)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP on r and w until ctx ends or r is closed.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, r, w)
}

type chatResult struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.chat.Turn(ctx, chat.Request{
		Model:     req.GetString("model", ""),
		SessionID: req.GetString("session_id", ""),
		Messages:  []provider.Message{{Role: provider.MessageRoleUser, Content: message}},
	})
	if err != nil {
		var ce *chat.CompletionError
		if errors.As(err, &ce) {
			return mcp.NewToolResultError(fmt.Sprintf("Chat completion error: %v (session_id %s)", ce.Err, resp.SessionID)), nil
		}
		s.logger.Error("mcp chat turn failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(chatResult{Response: resp.Text, SessionID: resp.SessionID})
}

func (s *Server) handleHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, ok := s.chat.History(id)
	if !ok {
		return mcp.NewToolResultError("Session not found"), nil
	}
	return jsonResult(sess.History)
}

func (s *Server) handleClear(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.chat.ClearHistory(id)
	return mcp.NewToolResultText(fmt.Sprintf("Session %s history cleared.", id)), nil
}

func (s *Server) handleListModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.chat.ListModels(ctx))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
