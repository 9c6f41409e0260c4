package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/swarmwatch/swarmwatch/internal/config"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"go.uber.org/zap"
)

// MinIdentifierLength is the shortest trimmed identifier accepted by
// /api/session/start.
const MinIdentifierLength = 6

// Controller is the part of *session.Controller the HTTP API drives.
type Controller interface {
	Start(identifier string)
	Stop()
	Snapshot() session.Snapshot
	Status() session.Status
}

type Server struct {
	ctrl           Controller
	broadcaster    *Broadcaster
	metrics        http.Handler
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	started        time.Time
	log            *zap.SugaredLogger
}

// NewServer builds the HTTP API. metrics may be nil to disable /metrics.
func NewServer(cfg config.ServerConfig, ctrl Controller, broadcaster *Broadcaster, metrics http.Handler) *Server {
	s := &Server{
		ctrl:           ctrl,
		broadcaster:    broadcaster,
		metrics:        metrics,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.AuthToken,
		started:        time.Now(),
		log:            logging.Named("http"),
	}

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Handler returns the routes wrapped in the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/session", s.authorized(s.handleSession))
	mux.HandleFunc("POST /api/session/start", s.authorized(s.handleStart))
	mux.HandleFunc("POST /api/session/stop", s.authorized(s.handleStop))
	mux.HandleFunc("GET /api/health", s.authorized(s.handleHealth))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return securityHeaders(mux)
}

func (s *Server) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		s.log.Warnf("rejecting ws client %s: %v", r.RemoteAddr, err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return
	}
	s.log.Infof("WebSocket client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.log.Infof("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid request body"})
		return
	}
	id := strings.TrimSpace(req.Identifier)
	if len(id) < MinIdentifierLength {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "identifier too short"})
		return
	}
	s.ctrl.Start(id)
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := HealthPayload{
		Status:        s.ctrl.Status(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		Clients:       s.broadcaster.ClientCount(),
	}
	if p, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfoWithContext(r.Context()); err == nil {
			h.RSSBytes = mem.RSS
		}
		if cpu, err := p.CPUPercentWithContext(r.Context()); err == nil {
			h.CPUPercent = cpu
		}
		if n, err := p.NumThreadsWithContext(r.Context()); err == nil {
			h.Threads = n
		}
	} else {
		s.log.Debugf("process stats unavailable: %v", err)
	}
	writeJSON(w, http.StatusOK, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Swarmwatch-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Named("http").Infof("Server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
