// Package server is the HTTP front door of the bridge. It mounts the session
// transport under the configured base path next to version, readiness and
// discovery endpoints, and owns the listener's lifecycle.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/config"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/mcpservice"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/session"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/transport"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpx"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/logtrace"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/middleware"
)

const shutdownTimeout = 10 * time.Second

// BridgeServer provides the main HTTP server for the bridge.
type BridgeServer struct {
	Router    *chi.Mux // HTTP router for request handling
	config    *config.ConfigParam
	registry  *tools.Registry
	sessions  *session.Manager
	transport *transport.Handler
}

// CreateNewServer wires the session layer for registry and returns a server
// whose routes are not mounted yet.
func CreateNewServer(ctx context.Context, cfg *config.ConfigParam, registry *tools.Registry) (*BridgeServer, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	svc, err := mcpservice.New(ctx, registry, Version)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(registry, svc, session.Options{
		QueueSize: cfg.Session.QueueSize,
	})
	keepAlive := cfg.GetKeepAlive()
	if keepAlive == 0 {
		keepAlive = -1
	}

	s := &BridgeServer{
		Router:   chi.NewRouter(),
		config:   cfg,
		registry: registry,
		sessions: sessions,
		transport: transport.NewHandler(sessions, transport.Options{
			BasePath:  cfg.Server.BasePath,
			KeepAlive: keepAlive,
		}),
	}
	return s, nil
}

// Sessions returns the session manager.
func (s *BridgeServer) Sessions() *session.Manager {
	return s.sessions
}

// MountHandlers sets up all HTTP routes and middleware for the server.
func (s *BridgeServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if s.config.Server.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrNotFound("no route for " + r.URL.Path).Send(w)
	})

	// Streams stay open indefinitely and must not run under the timeout.
	if base := transport.NormalizeBasePath(s.config.Server.BasePath); base != "" {
		s.Router.Route(base, s.transport.Router)
	} else {
		s.Router.Group(s.transport.Router)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(middleware.SetTimeout(s.config.GetRequestTimeout()))
		r.Get("/version", s.getVersion)
		r.Get("/ready", s.getReadiness)
		r.Get("/tools", s.getTools)
		r.Get("/sessions", s.getSessions)
	})

	if logtrace.IsTraceEnabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

// GetVersionRsp represents the response for version information.
type GetVersionRsp struct {
	ServerVersion    string `json:"serverVersion"`
	ProtocolVersion  string `json:"protocolVersion"`
	ClientVersion    string `json:"clientVersion,omitempty"`
	ClientCompatible *bool  `json:"clientCompatible,omitempty"`
}

// getVersion reports the bridge version. With ?client=<semver> it also
// reports whether that client version is compatible.
func (s *BridgeServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion:   "n8n MCP Bridge: " + Version,
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
	}
	if client := r.URL.Query().Get("client"); client != "" {
		compatible := IsVersionCompatible(client)
		rsp.ClientVersion = client
		rsp.ClientCompatible = &compatible
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *BridgeServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// getTools lists the registered tools with their input schemas.
func (s *BridgeServer) getTools(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]any{
		"tools": s.registry.List(),
	})
}

func (s *BridgeServer) getSessions(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]any{
		"sessions": s.sessions.ListSessions(),
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
func (s *BridgeServer) HandleCORS(next http.Handler) http.Handler {
	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Cache-Control", "Mcp-Session-Id", "X-Session-Id"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}

// Shutdown closes every session, which ends their streams.
func (s *BridgeServer) Shutdown() {
	s.sessions.CloseAll()
}

// ListenAndServe serves on the configured address until ctx is done, then
// closes all sessions and shuts the listener down gracefully.
func (s *BridgeServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", s.config.GetServerURL()).Msg("n8n MCP bridge listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	s.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
