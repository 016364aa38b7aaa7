package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/query"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Querier answers incident queries.
type Querier interface {
	Query(spec query.Spec) query.Result
	Areas() []string
	Period() string
}

// Resolver maps postcodes to areas.
type Resolver interface {
	Resolve(ctx context.Context, postcode string) domain.Resolution
}

// Server exposes health, readiness, metrics and the incident API.
type Server struct {
	httpServer *http.Server
	querier    Querier
	resolver   Resolver
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the ops routes and the /api/v1 routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, querier Querier, resolver Resolver, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      requestID(logger)(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		querier:  querier,
		resolver: resolver,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/incidents", s.handleIncidents)
	mux.HandleFunc("GET /api/v1/areas", s.handleAreas)
	mux.HandleFunc("GET /api/v1/postcode", s.handlePostcode)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type incidentsResponse struct {
	query.Result
	Period string `json:"period"`
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	req := newIncidentsRequest(r.URL.Query())
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	active := make([]domain.Category, 0, len(req.Categories))
	for _, name := range req.Categories {
		c, err := domain.ParseCategory(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		active = append(active, c)
	}

	res := s.querier.Query(query.NewSpec(req.Areas, active...))
	writeJSON(w, http.StatusOK, incidentsResponse{Result: res, Period: s.querier.Period()})
}

func (s *Server) handleAreas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"areas":  s.querier.Areas(),
		"period": s.querier.Period(),
	})
}

type postcodeResponse struct {
	Postcode string `json:"postcode"`
	Resolved bool   `json:"resolved"`
	Area     string `json:"area,omitempty"`
	Message  string `json:"message"`
}

func (s *Server) handlePostcode(w http.ResponseWriter, r *http.Request) {
	req := newPostcodeRequest(r.URL.Query())

	// Anything too long to be a postcode is answered like an unknown one.
	if err := s.validate.Struct(req); err != nil {
		s.logger.Debug("postcode rejected", "error", validationMessage(err))
		writeJSON(w, http.StatusOK, postcodeResponse{
			Postcode: req.Postcode,
			Message:  domain.InvalidPostcodeMessage,
		})
		return
	}

	res := s.resolver.Resolve(r.Context(), req.Postcode)
	writeJSON(w, http.StatusOK, postcodeResponse{
		Postcode: req.Postcode,
		Resolved: res.Resolved,
		Area:     res.Area,
		Message:  domain.PostcodeMessage(req.Postcode, res),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
