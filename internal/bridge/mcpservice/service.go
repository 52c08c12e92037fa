// Package mcpservice speaks MCP JSON-RPC 2.0 on top of the tool registry.
// Sessions hand it raw messages whose body carries "jsonrpc"; it answers
// initialize, tools/list and tools/call, and returns nil for notifications.
package mcpservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/jsonrpc"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/logtrace"
)

// ServerName is the implementation name reported on initialize.
const ServerName = "n8nMCPBridge"

// Service answers MCP messages for every session.
type Service struct {
	server   *server.MCPServer
	registry *tools.Registry
}

// New builds a Service exposing every tool in reg.
func New(ctx context.Context, reg *tools.Registry, version string) (*Service, apperrors.Error) {
	if reg == nil {
		return nil, ErrNoRegistry
	}
	srv := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s := &Service{
		server:   srv,
		registry: reg,
	}
	if err := s.loadTools(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// HandleMessage processes one JSON-RPC message. The returned message is nil
// for notifications.
func (s *Service) HandleMessage(ctx context.Context, msg json.RawMessage) mcp.JSONRPCMessage {
	if !gjson.ValidBytes(msg) {
		log.Ctx(ctx).Debug().Msg("unparseable json-rpc message")
		return jsonrpc.ConstructErrorResponse(nil, jsonrpc.ErrCodeParseError, "parse error")
	}
	return s.server.HandleMessage(ctx, msg)
}

func (s *Service) loadTools(ctx context.Context) apperrors.Error {
	list := s.registry.MCPTools()
	if len(list) == 0 {
		return ErrNoTools
	}
	for _, tool := range list {
		s.server.AddTool(tool, s.callTool)
	}
	log.Ctx(ctx).Info().Int("numTools", len(list)).Msg("loaded tools")
	return nil
}

// callTool routes tools/call to the registry. Registry failures come back as
// error results so the client sees them as tool output.
func (s *Service) callTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.Params.Name
	if logtrace.IsTraceEnabled() {
		input, _ := json.Marshal(req.Params.Arguments)
		log.Ctx(ctx).Trace().Str("tool", name).RawJSON("input", input).Msg("tool call")
	}

	res, err := s.registry.Invoke(ctx, name, req.GetArguments())
	if err != nil {
		log.Ctx(ctx).Error().Str("tool", name).Str("error", err.ErrorAll()).Msg("tool call failed")
		return mcp.NewToolResultError(err.ErrorAll()), nil
	}
	return toolResult(res)
}

func toolResult(res any) (*mcp.CallToolResult, error) {
	switch v := res.(type) {
	case string:
		return mcp.NewToolResultText(v), nil
	case nil:
		return mcp.NewToolResultText(""), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unable to encode tool result: %w", err)
		}
		return mcp.NewToolResultStructured(v, string(b)), nil
	}
}
