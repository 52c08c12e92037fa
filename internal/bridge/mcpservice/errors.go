package mcpservice

import (
	"net/http"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

var (
	// ErrMCPServiceError is the base error for MCP service errors.
	ErrMCPServiceError apperrors.Error = apperrors.New("mcp service error").SetStatusCode(http.StatusInternalServerError)

	// ErrNoRegistry is returned when the service is built without a tool registry.
	ErrNoRegistry apperrors.Error = ErrMCPServiceError.New("tool registry is nil")

	// ErrNoTools is returned when the registry is empty.
	ErrNoTools apperrors.Error = ErrMCPServiceError.New("no tools registered")
)
