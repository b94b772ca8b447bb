// Package devtools exposes a container for inspection: an HTTP API for
// listing stores, taking snapshots, and hydrating, plus a WebSocket
// stream of live mutation and action events.
//
// The server observes stores through the regular plugin pipeline, so
// it must be attached before the stores of interest are first
// accessed:
//
//	c := strata.NewContainer()
//	srv := devtools.New(c, devtools.DefaultConfig())
//	go http.ListenAndServe(":9229", srv.Handler())
//
// The stream and API are development tooling and carry no
// authentication; do not expose them on production listeners.
package devtools

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/strata-dev/strata/pkg/strata"
)

// Server broadcasts container activity to connected WebSocket clients
// and serves the inspection API.
type Server struct {
	container *strata.Container
	config    Config

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	dropped int64
}

// client is one connected WebSocket consumer with its own send queue.
type client struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

// New creates a devtools server and registers its observer plugin on
// the container. Stores instantiated before New are not instrumented,
// so attach devtools right after creating the container.
func New(container *strata.Container, config Config) *Server {
	s := &Server{
		container: container,
		config:    config.withDefaults(),
		clients:   map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			// Inspector runs on a separate dev listener; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	container.Use(s.plugin)
	return s
}

// plugin wires the observer callbacks into each new store.
func (s *Server) plugin(ctx *strata.PluginContext) map[string]any {
	store := ctx.Store
	id := store.ID()

	store.Subscribe(func(rec strata.MutationRecord, state map[string]any) {
		if !s.config.IncludeState {
			state = nil
		}
		s.broadcast(mutationEvent(rec, state))
	}, strata.Detached())

	store.OnAction(func(ac *strata.ActionContext) {
		name := ac.Name
		s.broadcast(actionEvent(id, name, "called", ""))
		ac.After(func(any) {
			s.broadcast(actionEvent(id, name, "success", ""))
		})
		ac.OnError(func(err error) {
			s.broadcast(actionEvent(id, name, "error", err.Error()))
		})
	}, strata.Detached())

	return nil
}

// Handler returns the devtools HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/stores", s.handleStores)
	r.Get("/api/snapshot", s.handleSnapshot)
	r.Post("/api/hydrate", s.handleHydrate)
	r.Get("/ws", s.handleWS)
	return r
}

// ClientCount returns the number of connected stream clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	type storeInfo struct {
		ID    string         `json:"id"`
		Keys  []string       `json:"keys"`
		State map[string]any `json:"state"`
	}
	infos := []storeInfo{}
	for _, id := range s.container.StoreIDs() {
		store, ok := s.container.Get(id)
		if !ok {
			continue
		}
		infos = append(infos, storeInfo{
			ID:    id,
			Keys:  store.Keys(),
			State: store.StateMap(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": infos})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.container.SerializeJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleHydrate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.container.HydrateJSON(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Error("devtools: websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, s.config.SendBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop consumes (and discards) client messages until the
// connection closes, then detaches the client.
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.config.Logger.Error("devtools: read error", "error", err)
			}
			return
		}
	}
}

// writeLoop drains the client's send queue and keeps the connection
// alive with pings.
func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	defer s.removeClient(c)

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				s.config.Logger.Error("devtools: write error", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// broadcast queues an event on every client, dropping it for clients
// whose buffer is full rather than blocking the mutating goroutine.
func (s *Server) broadcast(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- event:
		default:
			s.dropped++
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if present {
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
