package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gorilla "github.com/gorilla/websocket"
)

// Router builds the consumer listener: the WebSocket endpoint on its
// accepted paths plus the REST diagnostics
type Router struct {
	handler *Handler
	wsPath  string
}

// NewRouter creates a router serving WebSocket consumers on wsPath
func NewRouter(handler *Handler, wsPath string) *Router {
	return &Router{
		handler: handler,
		wsPath:  NormalizePath(wsPath),
	}
}

// Routes returns the HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", rt.handler.GetHealth)

	r.Get("/api/v1/status", rt.handler.GetStatus)
	r.Get("/api/v1/snapshot", rt.handler.GetSnapshot)
	r.Get("/api/v1/capabilities", rt.handler.GetCapabilities)
	r.Get("/api/v1/commands", rt.handler.GetCommands)

	for _, p := range AcceptedPaths(rt.wsPath) {
		r.Get(p, rt.handler.HandleWebSocket)
	}

	r.NotFound(rt.handler.NotFound)
	return r
}

// NormalizePath strips trailing slashes; an empty path becomes "/"
func NormalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// AcceptedPaths lists the request paths consumers may connect on
func AcceptedPaths(wsPath string) []string {
	p := NormalizePath(wsPath)
	if p == "/" {
		return []string{"/"}
	}
	return []string{p, p + "/", "/"}
}

// isUpgrade reports whether r asks for a WebSocket
func isUpgrade(r *http.Request) bool {
	return gorilla.IsWebSocketUpgrade(r)
}
