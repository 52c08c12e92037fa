// Package httpclient is the client for the n8n REST API. Every call produces
// exactly one of three outcomes: a 2xx Result, a BackendError carrying the
// non-2xx status and body, or a TransportError for everything that prevented
// a usable response. The client never retries.
package httpclient

import (
	"context"
)

// Caller is the single operation tool handlers need from the backend.
type Caller interface {
	// Call performs one HTTP request against the configured base URL.
	Call(ctx context.Context, opts RequestOptions) (*Result, error)
}

var _ Caller = &Client{}
