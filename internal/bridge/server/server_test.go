package server

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/config"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/workflows"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpclient"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/middleware"
)

// newBackend is a fake n8n that fails every workflow execution with 500.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/workflows":
			io.WriteString(w, `{"data":[{"id":"1","name":"Alpha"}]}`)
		case strings.HasSuffix(r.URL.Path, "/execute"):
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "boom")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConfig(backendURL string) *config.ConfigParam {
	cfg := config.Default()
	cfg.Backend.URL = backendURL + "/api/v1"
	cfg.Backend.MessagesURL = backendURL + "/messages"
	cfg.Session.KeepAlive = "0s"
	return cfg
}

func newBridge(t *testing.T, cfg *config.ConfigParam) (*httptest.Server, *BridgeServer) {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, workflows.NewToolset(httpclient.NewClient(cfg), workflows.Options{
		MessagesURL:   cfg.Backend.MessagesURL,
		RetryAttempts: cfg.Backend.RetryAttempts,
	}).Register(reg))

	s, err := CreateNewServer(context.Background(), cfg, reg)
	require.NoError(t, err)
	s.MountHandlers()
	srv := httptest.NewServer(s.Router)
	t.Cleanup(func() {
		s.Shutdown()
		srv.Close()
	})
	return srv, s
}

type stream struct {
	reader *bufio.Reader
}

func openStream(t *testing.T, url string) *stream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return &stream{reader: bufio.NewReader(resp.Body)}
}

// next returns the name and data of the next event.
func (s *stream) next(t *testing.T) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := s.reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && name != "":
			return name, data
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data += strings.TrimPrefix(line, "data: ")
		}
	}
}

func postJSON(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func getJSON(t *testing.T, url string) (int, gjson.Result, http.Header) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(b), resp.Header
}

func TestIsVersionCompatible(t *testing.T) {
	tests := map[string]bool{
		Version:     true,
		"0.1.9":     true,
		"0.2.0":     false,
		"1.0.0":     false,
		"not-a-ver": false,
	}
	for v, want := range tests {
		assert.Equal(t, want, IsVersionCompatible(v), "version %s", v)
	}
}

func TestVersionAndReadiness(t *testing.T) {
	srv, _ := newBridge(t, newTestConfig(newBackend(t).URL))

	status, body, header := getJSON(t, srv.URL+"/version")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body.Get("serverVersion").String(), Version)
	assert.NotEmpty(t, body.Get("protocolVersion").String())
	assert.False(t, body.Get("clientCompatible").Exists())
	assert.NotEmpty(t, header.Get(middleware.RequestIDHeader))

	_, body, _ = getJSON(t, srv.URL+"/version?client="+Version)
	assert.True(t, body.Get("clientCompatible").Bool())
	_, body, _ = getJSON(t, srv.URL+"/version?client=2.0.0")
	assert.True(t, body.Get("clientCompatible").Exists())
	assert.False(t, body.Get("clientCompatible").Bool())

	status, body, _ = getJSON(t, srv.URL+"/ready")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body.Get("status").String())
}

func TestToolsEndpoint(t *testing.T) {
	srv, _ := newBridge(t, newTestConfig(newBackend(t).URL))
	status, body, _ := getJSON(t, srv.URL+"/tools")
	assert.Equal(t, http.StatusOK, status)

	names := body.Get("tools.#.name").Array()
	require.Len(t, names, 5)
	assert.Equal(t, workflows.ToolHelloWorld, names[0].String())

	trigger := body.Get(`tools.#(name=="triggerWorkflow")`)
	assert.Equal(t, `["workflowId"]`, trigger.Get("inputSchema.required").Raw)
	assert.Equal(t, "{}", trigger.Get("inputSchema.properties.data.default").String())
}

func TestEndToEnd(t *testing.T) {
	srv, _ := newBridge(t, newTestConfig(newBackend(t).URL))
	s := openStream(t, srv.URL+"/sse")

	name, data := s.next(t)
	require.Equal(t, "endpoint", name)
	endpoint := srv.URL + gjson.Get(data, "endpoint").String()

	_, sessions, _ := getJSON(t, srv.URL+"/sessions")
	assert.Len(t, sessions.Get("sessions").Array(), 1)
	assert.Equal(t, "OPEN", sessions.Get("sessions.0.state").String())

	require.Equal(t, http.StatusAccepted, postJSON(t, endpoint, `{"id":"1","tool":"helloWorld","arguments":{}}`))
	_, data = s.next(t)
	assert.Equal(t, "1", gjson.Get(data, "requestId").String())
	assert.Equal(t, "Hello from n8n MCP Bridge!", gjson.Get(data, "result").String())

	require.Equal(t, http.StatusAccepted, postJSON(t, endpoint, `{"id":"2","tool":"triggerWorkflow","arguments":{"workflowId":"w1","data":"not-json"}}`))
	_, data = s.next(t)
	assert.Equal(t, "2", gjson.Get(data, "requestId").String())
	assert.Equal(t, "Error: Invalid JSON in data parameter", gjson.Get(data, "result").String())

	require.Equal(t, http.StatusAccepted, postJSON(t, endpoint, `{"id":"3","tool":"triggerWorkflow","arguments":{"workflowId":"w1"}}`))
	_, data = s.next(t)
	assert.Equal(t, "3", gjson.Get(data, "requestId").String())
	assert.Equal(t, "Error triggering workflow: 500 - boom", gjson.Get(data, "result").String())
	assert.False(t, gjson.Get(data, "error").Exists())

	// the session survives a backend failure
	require.Equal(t, http.StatusAccepted, postJSON(t, endpoint, `{"id":"4","tool":"listWorkflows"}`))
	_, data = s.next(t)
	assert.Equal(t, "Available n8n Workflows:\n- ID: 1, Name: Alpha\n", gjson.Get(data, "result").String())

	require.Equal(t, http.StatusAccepted, postJSON(t, endpoint, `{"id":"5","tool":"triggerWorkflow","arguments":{}}`))
	_, data = s.next(t)
	assert.Equal(t, int64(-32602), gjson.Get(data, "error.code").Int())

	assert.Equal(t, http.StatusNotFound, postJSON(t, srv.URL+"/messages?sessionId=unknown", `{"id":"6","tool":"helloWorld"}`))
}

func TestBasePath(t *testing.T) {
	cfg := newTestConfig(newBackend(t).URL)
	cfg.Server.BasePath = "/bridge"
	srv, _ := newBridge(t, cfg)

	s := openStream(t, srv.URL+"/bridge/sse")
	_, data := s.next(t)
	endpoint := gjson.Get(data, "endpoint").String()
	assert.True(t, strings.HasPrefix(endpoint, "/bridge/messages?sessionId="))

	require.Equal(t, http.StatusAccepted, postJSON(t, srv.URL+endpoint, `{"id":"1","tool":"helloWorld"}`))
	_, data = s.next(t)
	assert.Equal(t, "Hello from n8n MCP Bridge!", gjson.Get(data, "result").String())

	status, body, _ := getJSON(t, srv.URL+"/sse")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "no route for /sse", body.Get("error").String())
}

func TestCORS(t *testing.T) {
	cfg := newTestConfig(newBackend(t).URL)
	cfg.Server.HandleCORS = true
	cfg.Server.AllowedOrigins = []string{"http://app.example.com"}
	srv, _ := newBridge(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestShutdownEndsStreams(t *testing.T) {
	srv, bridge := newBridge(t, newTestConfig(newBackend(t).URL))
	s := openStream(t, srv.URL+"/sse")
	s.next(t)

	bridge.Shutdown()
	_, err := s.reader.ReadString('\n')
	assert.Error(t, err)
	assert.Empty(t, bridge.Sessions().ListSessions())
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	cfg := newTestConfig(newBackend(t).URL)
	cfg.Server.Port = "0"
	reg := tools.NewRegistry()
	require.NoError(t, workflows.NewToolset(httpclient.NewClient(cfg), workflows.Options{}).Register(reg))
	s, err := CreateNewServer(context.Background(), cfg, reg)
	require.NoError(t, err)
	s.MountHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
