package session

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/jsonrpc"
)

// State is the lifecycle state of a session. CLOSED is terminal.
type State int32

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Event names on the stream.
const (
	EventEndpoint = "endpoint"
	EventMessage  = "message"
)

// Event is one item delivered on a session's stream.
type Event struct {
	Name string
	Data []byte
}

// Request is a tool invocation posted by a client.
type Request struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Response answers exactly one Request, on the stream of the session that
// issued it.
type Response struct {
	RequestID string               `json:"requestId"`
	Result    any                  `json:"result,omitempty"`
	Error     *jsonrpc.ErrorObject `json:"error,omitempty"`
}

// Invoker runs a tool by name. tools.Registry implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, apperrors.Error)
}

// MessageHandler answers MCP JSON-RPC messages. A nil return means the
// message was a notification.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg json.RawMessage) mcp.JSONRPCMessage
}
