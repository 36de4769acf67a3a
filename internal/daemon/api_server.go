package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/events"
	"blackbox/internal/logging"
)

const defaultAPIListLimit = 50

// statusSource is the read-only daemon surface the HTTP API serves.
type statusSource interface {
	Status(ctx context.Context) Status
	Events(ctx context.Context, cameraID, limit int) ([]events.MotionEvent, error)
	Jobs(ctx context.Context, limit int, states ...events.JobState) ([]events.Job, error)
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	source statusSource

	listener net.Listener
	server   *http.Server
}

// newAPIServer returns nil when no bind address is configured.
func newAPIServer(cfg *config.Config, source statusSource, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || source == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		source: source,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", requireToken(token, s.log(), s.handleStatus))
	mux.HandleFunc("/api/events", requireToken(token, s.log(), s.handleEvents))
	mux.HandleFunc("/api/jobs", requireToken(token, s.log(), s.handleJobs))
	return withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.source.Status(r.Context()))
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	cameraID := -1
	if value := strings.TrimSpace(query.Get("camera")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		cameraID = parsed
	}
	list, err := s.source.Events(r.Context(), cameraID, parseLimit(query.Get("limit")))
	if err != nil {
		s.failed(r, "list events", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	var states []events.JobState
	for _, value := range query["state"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		states = append(states, events.JobState(trimmed))
	}
	list, err := s.source.Jobs(r.Context(), parseLimit(query.Get("limit")), states...)
	if err != nil {
		s.failed(r, "list jobs", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *apiServer) failed(r *http.Request, op string, err error) {
	logging.WarnWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
		logging.String("op", op),
		logging.String("path", r.URL.Path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "api caller received an error; recording is unaffected"),
	)
}

func parseLimit(value string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || limit <= 0 {
		return defaultAPIListLimit
	}
	return limit
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
