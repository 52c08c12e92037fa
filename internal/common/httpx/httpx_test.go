package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

func TestWrapHttpRsp(t *testing.T) {
	ErrMissing := apperrors.New("missing thing").SetStatusCode(http.StatusNotFound)

	tests := []struct {
		name       string
		handler    RequestHandler
		wantStatus int
		wantBody   string
	}{
		{
			name: "json body",
			handler: func(r *http.Request) (*Response, error) {
				return &Response{StatusCode: http.StatusOK, Response: map[string]string{"status": "ready"}}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name: "app error",
			handler: func(r *http.Request) (*Response, error) {
				return nil, ErrMissing.Msg("session not found")
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"session not found"}`,
		},
		{
			name: "http error",
			handler: func(r *http.Request) (*Response, error) {
				return nil, ErrInvalidRequest("bad")
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"bad"}`,
		},
		{
			name: "nil response",
			handler: func(r *http.Request) (*Response, error) {
				return nil, nil
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"unable to process request"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			WrapHttpRsp(tt.handler)(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestWrapHttpRspEmptyBody(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	WrapHttpRsp(func(r *http.Request) (*Response, error) {
		return &Response{StatusCode: http.StatusAccepted}, nil
	})(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestReadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"r1"}`))
	body, err := ReadBody(req)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"r1"}`, string(body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	_, err = ReadBody(req)
	require.Error(t, err)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", int(MaxRequestBody)+10)))
	_, err = ReadBody(req)
	var httpErr *Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, httpErr.StatusCode)
}

func TestResponseWriterFlush(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := NewResponseWriter(rr)
	rw.Flush()
	assert.True(t, rw.Written())
	assert.True(t, rr.Flushed)
	assert.Same(t, rw, NewResponseWriter(rw))
}
