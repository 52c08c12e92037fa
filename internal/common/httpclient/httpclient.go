package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// APIKeyHeader is the header n8n reads its public API key from.
const APIKeyHeader = "X-N8N-API-KEY"

// DefaultTimeout bounds a call when the configuration leaves it unset.
const DefaultTimeout = 30 * time.Second

// ErrMalformedResponse is the cause of a TransportError raised for a 2xx
// response whose body is not the JSON the caller asked for.
var ErrMalformedResponse = errors.New("malformed response body")

// Configurator supplies the backend location and credentials.
type Configurator interface {
	GetServerURL() string
	GetAPIKey() string
	GetTimeout() time.Duration
}

// BackendError is a response with a non-2xx status.
type BackendError struct {
	StatusCode int    // HTTP status returned by the backend
	Body       string // raw response body
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%d - %s", e.StatusCode, e.Body)
}

// TransportError means no usable response was obtained.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the cause was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Cause, &te) && te.Timeout()
}

// Result is a 2xx response.
type Result struct {
	StatusCode int
	Body       []byte
}

// IsJSON reports whether the body is valid JSON.
func (r *Result) IsJSON() bool {
	return gjson.ValidBytes(r.Body)
}

// JSON returns the parsed body. The zero gjson.Result is returned for a body
// that is not JSON.
func (r *Result) JSON() gjson.Result {
	if !r.IsJSON() {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// Text returns the body as a string.
func (r *Result) Text() string {
	return string(r.Body)
}

// Client calls the n8n REST API.
type Client struct {
	config     Configurator
	httpClient *http.Client
}

// NewClient creates a client whose calls are bounded by the configured timeout.
func NewClient(config Configurator) *Client {
	timeout := config.GetTimeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RequestOptions describes one call.
type RequestOptions struct {
	Method     string // HTTP method
	Path       string // path relative to the base URL, or an absolute URL
	Body       any    // nil, raw []byte, or a value encoded as JSON
	ExpectJSON bool   // a 2xx body that is not JSON becomes a TransportError
}

// Call performs the request described by opts.
func (c *Client) Call(ctx context.Context, opts RequestOptions) (*Result, error) {
	target, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if key := c.config.GetAPIKey(); key != "" {
		req.Header.Set(APIKeyHeader, key)
	}

	log.Ctx(ctx).Debug().Str("method", opts.Method).Str("url", target).Msg("backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	result := &Result{StatusCode: resp.StatusCode, Body: respBody}
	if opts.ExpectJSON && len(bytes.TrimSpace(respBody)) > 0 && !result.IsJSON() {
		return nil, &TransportError{Cause: ErrMalformedResponse}
	}
	return result, nil
}

func (c *Client) resolve(opts RequestOptions) (string, error) {
	var u *url.URL
	var err error
	if strings.HasPrefix(opts.Path, "http://") || strings.HasPrefix(opts.Path, "https://") {
		u, err = url.Parse(opts.Path)
		if err != nil {
			return "", fmt.Errorf("invalid request URL: %w", err)
		}
	} else {
		u, err = url.Parse(c.config.GetServerURL())
		if err != nil {
			return "", fmt.Errorf("invalid server URL: %w", err)
		}
		u.Path = path.Join(u.Path, opts.Path)
	}
	return u.String(), nil
}
