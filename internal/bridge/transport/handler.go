// Package transport exposes sessions over HTTP: a Server-Sent Events stream
// for server-to-client delivery and a POST endpoint for client messages.
package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/session"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpx"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/jsonrpc"
)

const (
	StreamPath   = "/sse"
	MessagesPath = "/messages"

	// SessionIDParam is the query parameter naming the target session.
	SessionIDParam = "sessionId"
)

// Headers accepted in place of the query parameter.
var sessionHeaders = []string{"Mcp-Session-Id", "X-Session-Id"}

// DefaultKeepAlive is the interval between keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// Options tunes a Handler.
type Options struct {
	BasePath  string        // prefix the routes are mounted under, used in the endpoint event
	KeepAlive time.Duration // zero uses DefaultKeepAlive, negative disables keep-alives
}

// Handler serves the stream and message endpoints.
type Handler struct {
	sessions  *session.Manager
	basePath  string
	keepAlive time.Duration
}

func NewHandler(sessions *session.Manager, opts Options) *Handler {
	if opts.KeepAlive == 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	return &Handler{
		sessions:  sessions,
		basePath:  NormalizeBasePath(opts.BasePath),
		keepAlive: opts.KeepAlive,
	}
}

// NormalizeBasePath returns p with a leading slash and no trailing slash;
// the root path becomes "".
func NormalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Router mounts the transport routes on r.
func (h *Handler) Router(r chi.Router) {
	r.Get(StreamPath, h.handleStream)
	r.Post(MessagesPath, httpx.WrapHttpRsp(h.postMessage))
	r.Post(MessagesPath+"/", httpx.WrapHttpRsp(h.postMessage))
}

type endpointEvent struct {
	SessionID string `json:"sessionId"`
	Endpoint  string `json:"endpoint"`
}

// EndpointFor is the message URL announced to the client of session id.
func (h *Handler) EndpointFor(id string) string {
	return h.basePath + MessagesPath + "?" + SessionIDParam + "=" + url.QueryEscape(id)
}

// handleStream opens a session for the lifetime of the request and streams
// its events.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.ErrStreamingNotSupported().Send(w)
		return
	}

	s, err := h.sessions.CreateSession(ctx)
	if err != nil {
		httpx.SendError(w, err)
		return
	}
	defer h.sessions.CloseSession(s.ID())
	logger := log.Ctx(ctx).With().Str("session_id", s.ID()).Logger()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ew := &eventWriter{w: w, flusher: flusher}
	handshake, _ := json.Marshal(endpointEvent{
		SessionID: s.ID(),
		Endpoint:  h.EndpointFor(s.ID()),
	})
	if err := ew.event(session.EventEndpoint, handshake); err != nil {
		logger.Debug().Err(err).Msg("unable to write handshake")
		return
	}

	var tick <-chan time.Time
	if h.keepAlive > 0 {
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("stream closed by client")
			return
		case <-s.Done():
			logger.Debug().Msg("session closed")
			return
		case ev := <-s.Events():
			if err := ew.event(ev.Name, ev.Data); err != nil {
				logger.Debug().Err(err).Msg("unable to write event")
				return
			}
		case <-tick:
			if err := ew.comment("ping"); err != nil {
				logger.Debug().Err(err).Msg("unable to write keep-alive")
				return
			}
		}
	}
}

// postMessage accepts one client message for a session. The response to it
// arrives on the session's stream.
func (h *Handler) postMessage(r *http.Request) (*httpx.Response, error) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, httpx.ErrUnableToParseReqData("request body is not valid JSON")
	}

	var (
		req *session.Request
		msg json.RawMessage
	)
	if jsonrpc.IsMessage(body) {
		msg = json.RawMessage(body)
	} else if req, err = parseRequest(body); err != nil {
		return nil, err
	}

	id := sessionID(r)
	if id == "" {
		return nil, httpx.ErrInvalidRequest("missing session id")
	}

	if msg != nil {
		if aerr := h.sessions.DispatchMessage(id, msg); aerr != nil {
			return nil, aerr
		}
	} else if aerr := h.sessions.Dispatch(id, req); aerr != nil {
		return nil, aerr
	}

	return &httpx.Response{
		StatusCode: http.StatusAccepted,
	}, nil
}

func parseRequest(body []byte) (*session.Request, error) {
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, httpx.ErrUnableToParseReqData("request must be a JSON object")
	}

	id := doc.Get("id")
	if id.Type != gjson.String && id.Type != gjson.Number {
		return nil, httpx.ErrUnableToParseReqData("request id must be a string or number")
	}
	tool := doc.Get("tool")
	if tool.Type != gjson.String || tool.String() == "" {
		return nil, httpx.ErrUnableToParseReqData("request tool must be a non-empty string")
	}

	req := &session.Request{
		ID:   id.String(),
		Tool: tool.String(),
	}
	if args := doc.Get("arguments"); args.Exists() && args.Type != gjson.Null {
		if !args.IsObject() {
			return nil, httpx.ErrUnableToParseReqData("arguments must be an object")
		}
		if err := json.Unmarshal([]byte(args.Raw), &req.Arguments); err != nil {
			return nil, httpx.ErrUnableToParseReqData("arguments must be an object")
		}
	}
	return req, nil
}

func sessionID(r *http.Request) string {
	if id := r.URL.Query().Get(SessionIDParam); id != "" {
		return id
	}
	for _, h := range sessionHeaders {
		if id := r.Header.Get(h); id != "" {
			return id
		}
	}
	return ""
}
