package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/metrics"
)

// Server binds the command dispatcher, the websocket feed and the metrics
// snapshot onto one HTTP listener.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

func NewServer(addr string, d *Dispatcher, hub *Hub, collector *metrics.Collector, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", handleCommand(d, log))
	mux.Handle("/api/ws", hub)
	mux.HandleFunc("/api/metrics", handleMetrics(collector))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "api").Logger(),
	}
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("api listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func handleCommand(d *Dispatcher, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, fail("invalid request body: "+err.Error()))
			return
		}

		resp := d.Dispatch(r.Context(), req)
		status := http.StatusOK
		if !resp.OK {
			status = http.StatusBadRequest
		}
		log.Debug().Str("action", req.Action).Str("session", req.SessionID).Bool("ok", resp.OK).Msg("command handled")
		writeJSON(w, status, resp)
	}
}

func handleMetrics(collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, collector.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
