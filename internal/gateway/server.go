// Package gateway exposes a local status HTTP server with a live
// WebSocket feed of recorder events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/vconscribe/internal/channel"
	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/domain"
	"github.com/soyeahso/vconscribe/internal/hooks"
	"github.com/soyeahso/vconscribe/internal/logging"
	"github.com/soyeahso/vconscribe/internal/store"
	"github.com/soyeahso/vconscribe/internal/version"
)

// Server serves /status, /records, and the /events WebSocket feed.
type Server struct {
	cfg      config.GatewayConfig
	store    *store.Store
	journal  *store.Journal
	channels *channel.Registry
	log      *logging.Logger

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewServer creates a gateway server and subscribes it to the hook
// manager so every recorder event is fanned out to connected clients.
func NewServer(cfg config.GatewayConfig, st *store.Store, journal *store.Journal, channels *channel.Registry, hookMgr *hooks.Manager, log *logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		journal:   journal,
		channels:  channels,
		log:       log.Sub("gateway"),
		startedAt: time.Now(),
		clients:   make(map[*websocket.Conn]struct{}),
	}

	for _, event := range hooks.AllEvents {
		hookMgr.On(event, "gateway", func(ctx context.Context, p hooks.Payload) error {
			s.broadcast(p)
			return nil
		})
	}
	return s
}

// Start serves HTTP until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.withAuth(s.handleStatus))
	mux.HandleFunc("GET /records", s.withAuth(s.handleRecords))
	mux.HandleFunc("GET /events", s.withAuth(s.handleEvents))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// withAuth enforces the configured bearer token. An empty token leaves
// the server open, which is acceptable on the loopback-only bind.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				token = r.URL.Query().Get("access_token")
			}
			if token != s.cfg.Token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// statusPayload is the /status response body.
type statusPayload struct {
	Version  string                 `json:"version"`
	Uptime   string                 `json:"uptime"`
	Channels []domain.ChannelStatus `json:"channels"`
	Records  int                    `json:"records"`
	Exports  int                    `json:"exports"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	paths, err := s.store.List()
	if err != nil {
		http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
		return
	}
	exports, err := s.journal.Count()
	if err != nil {
		exports = -1
	}

	writeJSON(w, statusPayload{
		Version:  version.Version,
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Channels: s.channels.Status(),
		Records:  len(paths),
		Exports:  exports,
	})
}

// recordSummary is one entry of the /records response.
type recordSummary struct {
	UUID      string `json:"uuid"`
	Subject   string `json:"subject"`
	CreatedAt string `json:"created_at"`
	Parties   int    `json:"parties"`
	Dialog    int    `json:"dialog"`
	Path      string `json:"path"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	paths, err := s.store.List()
	if err != nil {
		http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
		return
	}

	summaries := make([]recordSummary, 0, len(paths))
	for _, path := range paths {
		rec, err := s.store.Load(path)
		if err != nil {
			continue
		}
		summaries = append(summaries, recordSummary{
			UUID:      rec.UUID,
			Subject:   rec.Subject,
			CreatedAt: rec.CreatedAt,
			Parties:   len(rec.Parties),
			Dialog:    len(rec.Dialog),
			Path:      path,
		})
	}
	writeJSON(w, summaries)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("event subscriber connected")

	// Read loop only to observe the close; subscribers never send.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends a hook payload to every connected subscriber.
func (s *Server) broadcast(p hooks.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(p); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn.Close()
	delete(s.clients, conn)
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
