package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/comzer-gov/casbot/internal/notify"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type Enqueuer interface {
	Enqueue(r notify.Request) notify.Job
}

type Server struct {
	secret string
	queue  Enqueuer
	srv    *http.Server
}

func NewServer(addr, secret string, queue Enqueuer) *Server {
	s := &Server{secret: secret, queue: queue}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/notify", s.handleNotify).Methods(http.MethodPost)
	router.HandleFunc("/api/notify", s.handleNotify).Methods(http.MethodPost)
	return router
}

// Start serves in the background. Listener failures other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get("x-api-key")) {
		slog.Warn("notify rejected: invalid api key", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden: Invalid API Key"})
		return
	}

	body := map[string]any{}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("notify rejected: malformed body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	req, err := notify.ParseRequest(body)
	if err != nil {
		slog.Warn("notify rejected: missing discord id", "request_id", req.RequestID)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job := s.queue.Enqueue(req)
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued", "requestId": job.RequestID})
}

func (s *Server) authorized(key string) bool {
	if s.secret == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write json response", "error", err)
	}
}
