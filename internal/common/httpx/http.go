// Package httpx holds the HTTP response plumbing shared by the bridge handlers:
// JSON responses, error bodies and a response writer that keeps streaming
// interfaces visible through middleware.
package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

// MaxRequestBody bounds the size of JSON bodies read by ReadBody.
const MaxRequestBody int64 = 1 << 20

// ReadBody reads a POST body up to MaxRequestBody bytes.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return nil, ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return nil, ErrUnableToReadRequest()
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBody+1))
	if err != nil {
		return nil, ErrUnableToReadRequest()
	}
	if int64(len(body)) > MaxRequestBody {
		return nil, ErrRequestTooLarge(MaxRequestBody)
	}
	if len(body) == 0 {
		return nil, ErrUnableToParseReqData()
	}
	return body, nil
}

// Response describes a non-streaming handler result.
type Response struct {
	StatusCode  int
	Response    any
	ContentType string
}

// RequestHandler is a handler that returns its response instead of writing it.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to http.HandlerFunc, rendering errors
// with their status code and a {"error": ...} body.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			sendAnyError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.Response == nil {
			w.WriteHeader(rsp.StatusCode)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		switch rsp.ContentType {
		case "application/json":
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
		case "text/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(rsp.StatusCode)
			if s, ok := rsp.Response.(string); ok {
				w.Write([]byte(s))
			}
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

func sendAnyError(w http.ResponseWriter, err error) {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		httpErr.Send(w)
		return
	}
	if appErr, ok := err.(apperrors.Error); ok {
		SendError(w, appErr)
		return
	}
	ErrApplicationError(err.Error()).Send(w)
}
