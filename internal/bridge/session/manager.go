package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/jsonrpc"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/uuid"
)

// DefaultQueueSize is the capacity of each session queue when unset.
const DefaultQueueSize = 64

// Options tunes a Manager.
type Options struct {
	QueueSize int // capacity of the inbound and outbound queue of each session
}

// Manager owns every open session.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	invoker   Invoker
	rpc       MessageHandler
	queueSize int
}

// NewManager creates a Manager that runs requests through invoker and
// JSON-RPC messages through rpc. rpc may be nil.
func NewManager(invoker Invoker, rpc MessageHandler, opts Options) *Manager {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		invoker:   invoker,
		rpc:       rpc,
		queueSize: opts.QueueSize,
	}
}

// CreateSession opens a session bound to the stream whose request context is
// ctx, and starts its worker.
func (m *Manager) CreateSession(ctx context.Context) (*Session, apperrors.Error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, ErrSessionError.MsgErr("unable to generate session id", err)
	}

	logger := log.Ctx(ctx).With().Str("session_id", id.String()).Logger()
	if log.Ctx(ctx).GetLevel() == zerolog.Disabled {
		logger = log.With().Str("session_id", id.String()).Logger()
	}

	s := &Session{
		id:        id.String(),
		createdAt: time.Now(),
		ctx:       logger.WithContext(context.WithoutCancel(ctx)),
		inbox:     make(chan job, m.queueSize),
		outbox:    newOutbox(m.queueSize),
		done:      make(chan struct{}),
		logger:    &logger,
	}
	s.state.Store(int32(StateOpen))

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	go m.run(s)
	s.logger.Info().Msg("session opened")
	return s, nil
}

// GetSession returns the open session with the given id.
func (m *Manager) GetSession(id string) (*Session, apperrors.Error) {
	if !uuid.IsValid(id) {
		return nil, ErrUnknownSession.Msg(fmt.Sprintf("unknown session: %s", id))
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || !s.IsOpen() {
		return nil, ErrUnknownSession.Msg(fmt.Sprintf("unknown session: %s", id))
	}
	return s, nil
}

// ListSessions returns the open sessions, oldest first.
func (m *Manager) ListSessions() []*Session {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].id < list[j].id
	})
	return list
}

// Dispatch queues req on the session's inbound queue. The response is
// delivered later on the session's stream. An unknown or closed session is
// rejected without touching the invoker.
func (m *Manager) Dispatch(id string, req *Request) apperrors.Error {
	if req == nil || req.ID == "" || req.Tool == "" {
		return ErrInvalidRequest.Msg("request requires id and tool")
	}
	s, err := m.GetSession(id)
	if err != nil {
		return err
	}
	return m.enqueue(s, job{req: req})
}

// DispatchMessage queues an MCP JSON-RPC message for the session. Responses
// are delivered on the stream; notifications produce nothing.
func (m *Manager) DispatchMessage(id string, msg json.RawMessage) apperrors.Error {
	s, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if m.rpc == nil {
		return ErrMessagesUnsupported
	}
	return m.enqueue(s, job{msg: msg})
}

func (m *Manager) enqueue(s *Session, j job) apperrors.Error {
	err := s.enqueue(j)
	if errors.Is(err, ErrSessionBusy) {
		s.logger.Warn().Int("queueSize", m.queueSize).Msg("inbound queue full")
	}
	return err
}

// Handle runs one request and converts the outcome to a Response.
func (m *Manager) Handle(ctx context.Context, req *Request) *Response {
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	result, err := m.invoker.Invoke(ctx, req.Tool, args)
	if err != nil {
		log.Ctx(ctx).Info().Str("request_id", req.ID).Str("tool", req.Tool).Str("error", err.ErrorAll()).Msg("tool call failed")
		return &Response{RequestID: req.ID, Error: ErrorObject(err)}
	}
	return &Response{RequestID: req.ID, Result: result}
}

// CloseSession closes the session and discards its queues. Closing an
// unknown or already closed session is a no-op.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok && s.close() {
		s.logger.Info().Msg("session closed")
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	list := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range list {
		if s.close() {
			s.logger.Info().Msg("session closed")
		}
	}
}

// run is the session worker. It stops when the session closes; queued jobs
// are dropped and results that complete after that are discarded.
func (m *Manager) run(s *Session) {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		select {
		case <-s.done:
			return
		case j := <-s.inbox:
			if !s.IsOpen() {
				return
			}
			data := m.process(s, j)
			if !s.IsOpen() {
				s.logger.Debug().Msg("discarding result for closed session")
				return
			}
			if data != nil {
				s.outbox.send(Event{Name: EventMessage, Data: data})
			}
		}
	}
}

func (m *Manager) process(s *Session, j job) []byte {
	if j.req != nil {
		resp := m.Handle(s.ctx, j.req)
		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", j.req.ID).Msg("unable to encode response")
			data, _ = json.Marshal(&Response{
				RequestID: j.req.ID,
				Error:     ErrorObject(ErrEncodeResponse.MsgErr(err.Error(), err)),
			})
		}
		return data
	}

	resp := m.rpc.HandleMessage(s.ctx, j.msg)
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("unable to encode json-rpc response")
		data, _ = json.Marshal(jsonrpc.ConstructErrorResponse(j.msg, jsonrpc.ErrCodeInternalError, "unable to encode response"))
	}
	return data
}

// ErrorObject maps an application error to its wire form.
func ErrorObject(err apperrors.Error) *jsonrpc.ErrorObject {
	code := jsonrpc.ErrCodeInternalError
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		code = jsonrpc.ErrCodeMethodNotFound
	case errors.Is(err, tools.ErrInvalidArguments):
		code = jsonrpc.ErrCodeInvalidParams
	case errors.Is(err, ErrUnknownSession):
		code = jsonrpc.ErrCodeUnknownSession
	case errors.Is(err, ErrInvalidRequest):
		code = jsonrpc.ErrCodeInvalidRequest
	}
	return jsonrpc.NewError(code, err.ErrorAll())
}
