// Package api exposes a small introspection HTTP server: current engine
// state, the managed set, recent history, and a websocket stream of focus
// events. It is read-only; nothing here drives focus decisions.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hoverfocus/hoverfocus/internal/engine"
	"github.com/hoverfocus/hoverfocus/internal/history"
	"github.com/hoverfocus/hoverfocus/internal/logger"
	"github.com/hoverfocus/hoverfocus/internal/managed"
)

// Server is the HTTP API server.
type Server struct {
	router   *mux.Router
	engine   *engine.Engine
	watcher  *managed.Watcher
	store    *history.Store // nil when history is disabled
	upgrader websocket.Upgrader
	started  time.Time
}

// NewServer creates an API server over the running engine. store may be
// nil when the history feature is disabled.
func NewServer(eng *engine.Engine, watcher *managed.Watcher, store *history.Store) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		engine:  eng,
		watcher: watcher,
		store:   store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/managed", s.handleManaged).Methods("GET")
	api.HandleFunc("/history/recent", s.handleHistoryRecent).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)
}

// Start starts the HTTP server and blocks.
func (s *Server) Start(listen string) error {
	logger.WithComponent("api").Info().
		Str("listen", listen).
		Msg("api server listening")
	return http.ListenAndServe(listen, s.router)
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.watcher.Snapshot()

	status := map[string]interface{}{
		"last_focused":       uint32(s.engine.LastFocused()),
		"managed_configured": s.watcher.Configured(),
		"uptime_seconds":     int(time.Since(s.started).Seconds()),
		"history_enabled":    s.store != nil,
	}
	if s.watcher.Configured() {
		status["managed_path"] = s.watcher.Path()
		status["managed_count"] = len(snapshot)
	}
	writeJSON(w, status)
}

func (s *Server) handleManaged(w http.ResponseWriter, r *http.Request) {
	if !s.watcher.Configured() {
		http.Error(w, "no managed list configured", http.StatusNotFound)
		return
	}

	snapshot := s.watcher.Snapshot()
	handles := make([]uint32, 0, len(snapshot))
	for win := range snapshot {
		handles = append(handles, uint32(win))
	}
	writeJSON(w, handles)
}

func (s *Server) handleHistoryRecent(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	changes, err := s.store.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, changes)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.engine.Subscribe()
	defer s.engine.Unsubscribe(events)

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
