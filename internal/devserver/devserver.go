// Package devserver is a minimal pull-mode host (spec.md §4.5's "a host
// need not be esbuild at all"), demonstrating the protocol against a
// plain HTTP server rather than the esbuild reference integration in
// internal/hostplugin. It serves transformed JS, serves CSS from the
// shared file buffer on demand, and pushes a reload notice over a
// websocket when NotifyChanged is called for a source id.
package devserver

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/calebeby/severed/internal/hostplugin"
)

// Server wires an Adapter to plain net/http handlers plus a reload socket.
type Server struct {
	Adapter *hostplugin.Adapter

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
}

func New(adapter *hostplugin.Adapter) *Server {
	return &Server{
		Adapter: adapter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// A local dev server has no cross-origin concerns worth
			// enforcing: it is bound to localhost and never exposed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the server's full HTTP mux: /__severed/reload for the
// websocket, and a catch-all that serves either a virtual CSS module (pull
// mode) or a transformed script, depending on the request path.
func (s *Server) Handler(readSource func(path string) (string, error)) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/__severed/reload", s.handleReloadSocket)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/")
		if r.URL.RawQuery != "" {
			id += "?" + r.URL.RawQuery
		}

		if css, ok := s.Adapter.Load(id); ok {
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
			_, _ = w.Write([]byte(css))
			return
		}

		source, err := readSource(id)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		rewritten, _, err := s.Adapter.Transform(id, source)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte(rewritten))
	})

	return mux
}

func (s *Server) handleReloadSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("devserver: websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	// The socket is write-only from the server's perspective; read the
	// (unused) client side to notice disconnects promptly.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NotifyChanged broadcasts a reload notice for sourceID to every connected
// client. cmd/severed's watcher calls it when a source file is written or
// created on disk; the file's buffer entry is refreshed only when the file
// is next requested and transformed.
func (s *Server) NotifyChanged(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(sourceID)); err != nil {
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
}
