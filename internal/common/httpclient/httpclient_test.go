package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	url     string
	apiKey  string
	timeout time.Duration
}

func (c *testConfig) GetServerURL() string      { return c.url }
func (c *testConfig) GetAPIKey() string         { return c.apiKey }
func (c *testConfig) GetTimeout() time.Duration { return c.timeout }

func newBackend(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestCallJSON(t *testing.T) {
	var gotPath, gotKey, gotBody string
	ts := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(APIKeyHeader)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"executionId":"9"}`))
	})
	c := NewClient(&testConfig{url: ts.URL + "/api/v1", apiKey: "secret"})

	res, err := c.Call(context.Background(), RequestOptions{
		Method:     http.MethodPost,
		Path:       "/workflows/42/execute",
		Body:       map[string]any{"text": "hi"},
		ExpectJSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "9", res.JSON().Get("executionId").String())
	assert.Equal(t, "/api/v1/workflows/42/execute", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.JSONEq(t, `{"text":"hi"}`, gotBody)
}

func TestCallPlainText(t *testing.T) {
	ts := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("accepted"))
	})
	c := NewClient(&testConfig{url: ts.URL})

	res, err := c.Call(context.Background(), RequestOptions{Method: http.MethodGet, Path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, "accepted", res.Text())
	assert.False(t, res.IsJSON())
	assert.False(t, res.JSON().Exists())

	_, err = c.Call(context.Background(), RequestOptions{Method: http.MethodGet, Path: "/ping", ExpectJSON: true})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCallBackendError(t *testing.T) {
	ts := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("workflow crashed"))
	})
	c := NewClient(&testConfig{url: ts.URL})

	_, err := c.Call(context.Background(), RequestOptions{Method: http.MethodGet, Path: "/workflows"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
	assert.Equal(t, "workflow crashed", be.Body)
	assert.Equal(t, "500 - workflow crashed", be.Error())
}

func TestCallTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	c := NewClient(&testConfig{url: url})

	_, err := c.Call(context.Background(), RequestOptions{Method: http.MethodGet, Path: "/workflows"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Timeout())
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c := NewClient(&testConfig{url: ts.URL, timeout: 50 * time.Millisecond})

	_, err := c.Call(context.Background(), RequestOptions{Method: http.MethodGet, Path: "/slow"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
}

func TestCallAbsoluteURL(t *testing.T) {
	var got map[string]string
	other := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	})
	c := NewClient(&testConfig{url: "http://127.0.0.1:1/api/v1"})

	res, err := c.Call(context.Background(), RequestOptions{
		Method: http.MethodPost,
		Path:   other.URL + "/messages",
		Body:   map[string]string{"message": "hello"},
	})
	require.NoError(t, err)
	assert.True(t, res.JSON().Get("ok").Bool())
	assert.Equal(t, "hello", got["message"])
}
