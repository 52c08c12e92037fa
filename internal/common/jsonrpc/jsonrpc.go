// Package jsonrpc holds the JSON-RPC 2.0 error vocabulary shared by the native
// tool protocol and the MCP message path.
package jsonrpc

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Version specifies the JSON-RPC protocol version
const Version = "2.0"

// ErrorObject is the error member of a response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return e.Message
}

// NewError builds an ErrorObject.
func NewError(code int, message string) *ErrorObject {
	return &ErrorObject{Code: code, Message: message}
}

// Response is a JSON-RPC 2.0 response envelope. ID is kept as raw JSON so
// numeric and string ids round-trip unchanged.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ConstructErrorResponse builds an error response for the request id found in
// msg, or a null id when msg carries none.
func ConstructErrorResponse(msg []byte, code int, message string) *Response {
	id := json.RawMessage("null")
	if v := gjson.GetBytes(msg, "id"); v.Exists() {
		id = json.RawMessage(v.Raw)
	}
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   NewError(code, message),
	}
}

// IsMessage reports whether body is a JSON-RPC 2.0 object.
func IsMessage(body []byte) bool {
	return gjson.GetBytes(body, "jsonrpc").String() == Version
}

// Standard JSON-RPC 2.0 error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON was received
	ErrCodeInvalidRequest = -32600 // The JSON sent is not a valid Request object
	ErrCodeMethodNotFound = -32601 // The method does not exist
	ErrCodeInvalidParams  = -32602 // Invalid method parameter(s)
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeUnknownSession = -32001 // Session is not open
)
