package session

import (
	"net/http"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetStatusCode(http.StatusInternalServerError)

	// ErrUnknownSession is returned when the id does not name an open session.
	ErrUnknownSession apperrors.Error = ErrSessionError.New("unknown session").SetStatusCode(http.StatusNotFound)

	// ErrInvalidRequest is returned for a request without id or tool.
	ErrInvalidRequest apperrors.Error = ErrSessionError.New("invalid request").SetStatusCode(http.StatusBadRequest)

	// ErrSessionBusy is returned when the session's inbound queue is full.
	ErrSessionBusy apperrors.Error = ErrSessionError.New("session queue is full").SetStatusCode(http.StatusServiceUnavailable)

	// ErrMessagesUnsupported is returned for JSON-RPC messages when no
	// message handler is configured.
	ErrMessagesUnsupported apperrors.Error = ErrSessionError.New("json-rpc messages are not supported").SetStatusCode(http.StatusBadRequest)

	// ErrEncodeResponse is reported when a tool result cannot be serialized.
	ErrEncodeResponse apperrors.Error = ErrSessionError.New("unable to encode response")
)
