// Package api provides HTTP API functionality for the go-lynx bridge.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/resident-x/go-lynx/internal/config"
	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP API server that exposes the latest inverter
// readings and registry metadata for monitoring.
type Server struct {
	config    *config.Config
	server    *http.Server
	router    *mux.Router
	source    domain.SnapshotSource
	registry  *registry.Registry
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *config.Config, source domain.SnapshotSource, reg *registry.Registry) *Server {
	router := mux.NewRouter()

	// Create logger with API component context
	logger := log.With().Str("component", "api").Logger()

	// Create API server instance
	apiServer := &Server{
		config:    cfg,
		router:    router,
		source:    source,
		registry:  reg,
		logger:    logger,
		startTime: time.Now(),
	}

	// Set up API routes
	apiServer.setupRoutes()

	return apiServer
}

// setupRoutes configures all API endpoint handlers.
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)

	// API versioning
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Bridge status endpoint
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// Registry and reading endpoints
	api.HandleFunc("/parameters", s.handleListParameters).Methods("GET")
	api.HandleFunc("/readings", s.handleListReadings).Methods("GET")
	api.HandleFunc("/readings/{name}", s.handleGetReading).Methods("GET")
}

// requestIDMiddleware tags every response with a unique request ID for log
// correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("API request")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port)

	// Create HTTP server
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		s.logger.Info().
			Str("host", s.config.API.Host).
			Int("port", s.config.API.Port).
			Msg("Starting HTTP API server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleStatus returns bridge status information.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":         "ok",
		"uptime":         time.Since(s.startTime).String(),
		"online":         s.source.Online(),
		"parameterCount": s.registry.Len(),
	}
	if device, ok := s.source.Device(); ok {
		status["device"] = device
	}
	if last := s.source.LastContact(); !last.IsZero() {
		status["lastContact"] = last.UTC().Format(time.RFC3339)
	}

	s.writeJSON(w, status, http.StatusOK)
}

// parameterView is the JSON shape of one registry entry.
type parameterView struct {
	Name           string  `json:"name"`
	ModuleID       byte    `json:"module_id"`
	Index          byte    `json:"index"`
	Subindex       byte    `json:"subindex"`
	DataType       string  `json:"data_type"`
	Scale          float64 `json:"scale"`
	Unit           string  `json:"unit,omitempty"`
	Classification string  `json:"classification,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// handleListParameters returns the full parameter registry.
func (s *Server) handleListParameters(w http.ResponseWriter, _ *http.Request) {
	defs := s.registry.All()
	views := make([]parameterView, 0, len(defs))
	for _, def := range defs {
		views = append(views, parameterView{
			Name:           def.Name,
			ModuleID:       def.ModuleID,
			Index:          def.Index,
			Subindex:       def.Subindex,
			DataType:       def.DataType.String(),
			Scale:          def.Scale,
			Unit:           def.Unit,
			Classification: def.Classification,
			Description:    def.Description,
		})
	}
	s.writeJSON(w, views, http.StatusOK)
}

// readingView is the JSON shape of one reading.
type readingView struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value,omitempty"`
	Text  string   `json:"text,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Error string   `json:"error,omitempty"`
}

func toReadingView(reading domain.Reading) readingView {
	view := readingView{
		Name: reading.Name,
		Unit: reading.Unit,
	}
	switch {
	case reading.Err != nil:
		view.Error = reading.Err.Error()
	case reading.IsText:
		view.Text = reading.Text
	default:
		value := reading.Value
		view.Value = &value
	}
	return view
}

// handleListReadings returns the latest snapshot of all readings.
func (s *Server) handleListReadings(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.source.Snapshot()
	views := make(map[string]readingView, len(snapshot))
	for name, reading := range snapshot {
		views[name] = toReadingView(reading)
	}
	s.writeJSON(w, views, http.StatusOK)
}

// handleGetReading returns the latest reading for one parameter.
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.registry.Has(name) {
		s.writeJSON(w, map[string]string{"error": fmt.Sprintf("unknown parameter %q", name)}, http.StatusNotFound)
		return
	}
	reading, ok := s.source.Snapshot()[name]
	if !ok {
		s.writeJSON(w, map[string]string{"error": fmt.Sprintf("no reading yet for %q", name)}, http.StatusNotFound)
		return
	}
	s.writeJSON(w, toReadingView(reading), http.StatusOK)
}

// writeJSON serializes a response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
