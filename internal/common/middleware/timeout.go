package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpx"
)

// SetTimeout bounds request handling time. It must not wrap event streams.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{rw: httpx.NewResponseWriter(w), h: make(http.Header)}
			r = r.WithContext(ctx)

			tw.rw.Header().Set("X-Bridge-Timeout", timeout.String())

			done := make(chan struct{})
			go func() {
				defer func() {
					if p := recover(); p != nil {
						log.Ctx(ctx).Error().Msgf("panic in handler: %v", p)
					}
					close(done)
				}()
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				if !tw.wroteHeader {
					tw.copyHeader()
				}
				return
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.rw.Written() {
					httpx.ErrRequestTimeout().Send(tw.rw)
				}
				log.Ctx(ctx).Error().Msg("request timed out")
			}
		})
	}
}

// timeoutWriter drops writes from a handler that outlived its deadline. The
// handler's headers live in h until it writes, so a timed-out handler never
// touches the real header map.
type timeoutWriter struct {
	mu          sync.Mutex
	rw          *httpx.ResponseWriter
	h           http.Header
	timedOut    bool
	wroteHeader bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.rw.Write(b)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.copyHeader()
	tw.wroteHeader = true
	tw.rw.WriteHeader(code)
}

func (tw *timeoutWriter) copyHeader() {
	dst := tw.rw.Header()
	for k, vv := range tw.h {
		dst[k] = vv
	}
}
