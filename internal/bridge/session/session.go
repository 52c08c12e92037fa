// Package session turns a long-lived event stream into an addressable RPC
// session. Each session owns an inbound queue drained by one worker
// goroutine, so requests run one at a time in arrival order, and an outbound
// queue drained by the stream. Closing a session drops both queues; tool
// calls already running finish but their results are discarded.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

// job is one unit of work for the session worker: either a native request or
// a raw JSON-RPC message.
type job struct {
	req *Request
	msg json.RawMessage
}

// Session is one open stream and its queues.
type Session struct {
	id        string
	createdAt time.Time
	state     atomic.Int32

	ctx    context.Context // work context; carries the logger, not the stream's cancellation
	inbox  chan job
	outbox *outbox
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex // orders enqueue against close
	logger *zerolog.Logger
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// Events is the session's outbound queue.
func (s *Session) Events() <-chan Event {
	return s.outbox.ch
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// MarshalJSON renders the session summary used by listings.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
		State     State     `json:"state"`
		Queued    int       `json:"queued"`
	}{
		ID:        s.id,
		CreatedAt: s.createdAt,
		State:     s.State(),
		Queued:    len(s.outbox.ch),
	})
}

func (s *Session) close() bool {
	closed := false
	s.once.Do(func() {
		s.mu.Lock()
		s.state.Store(int32(StateClosed))
		close(s.done)
		s.mu.Unlock()
		s.outbox.close()
		closed = true
	})
	return closed
}

// enqueue hands a job to the worker without waiting. A closed session
// yields ErrUnknownSession and a full inbox ErrSessionBusy.
func (s *Session) enqueue(j job) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return ErrUnknownSession.Msg(fmt.Sprintf("unknown session: %s", s.id))
	default:
	}
	select {
	case s.inbox <- j:
		return nil
	default:
		return ErrSessionBusy
	}
}
