package tools

import (
	"net/http"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

var (
	// ErrToolError is the base error for registry and invocation failures.
	ErrToolError apperrors.Error = apperrors.New("tool error").SetStatusCode(http.StatusInternalServerError)

	// ErrDuplicateTool is returned by Register when the name is already taken.
	// Fatal at startup.
	ErrDuplicateTool apperrors.Error = ErrToolError.New("tool already registered")

	// ErrInvalidTool is returned by Register for an unusable descriptor.
	ErrInvalidTool apperrors.Error = ErrToolError.New("invalid tool definition")

	// ErrUnknownTool is returned by Invoke when no tool has the requested name.
	ErrUnknownTool apperrors.Error = ErrToolError.New("unknown tool").SetStatusCode(http.StatusNotFound)

	// ErrInvalidArguments is returned when the arguments do not satisfy the
	// tool's parameters. Handlers wrap it for their own parsing failures.
	ErrInvalidArguments apperrors.Error = ErrToolError.New("invalid arguments").SetStatusCode(http.StatusBadRequest).SetExpandError(true)

	// ErrToolExecution wraps any other handler failure, including panics.
	ErrToolExecution apperrors.Error = ErrToolError.New("tool execution failed").SetExpandError(true)
)
