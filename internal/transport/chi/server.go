package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
	"github.com/nxx-sync/nxx/internal/logger"
	healthuc "github.com/nxx-sync/nxx/internal/usecase/health"
	subscriptionuc "github.com/nxx-sync/nxx/internal/usecase/subscription"
)

// Server serves the edge API: schema registration, subscriptions, patch validation
// and mutation events.
type Server struct {
	schemas       Schemas
	subscriptions Subscriptions
	mutations     Mutations
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	schemas Schemas,
	subscriptions Subscriptions,
	mutations Mutations,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		schemas:       schemas,
		subscriptions: subscriptions,
		mutations:     mutations,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Put("/apps/{appId}/schema", s.PutSchema)
	r.Get("/apps/{appId}/schema", s.GetSchema)
	r.Delete("/apps/{appId}/schema", s.DeleteSchema)

	r.Post("/subscriptions", s.Subscribe)
	r.Delete("/subscriptions", s.Unsubscribe)
	r.Post("/patches/validate", s.ValidatePatches)
	r.Post("/events", s.PublishEvent)
}

// PutSchema handles PUT /apps/{appId}/schema.
func (s *Server) PutSchema(w http.ResponseWriter, r *http.Request) {
	var app domschema.Application
	if !s.decode(w, r, &app) {
		return
	}

	appID := chi.URLParam(r, "appId")
	if err := s.schemas.Register(r.Context(), appID, app); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// GetSchema handles GET /apps/{appId}/schema.
func (s *Server) GetSchema(w http.ResponseWriter, r *http.Request) {
	app, err := s.schemas.Get(r.Context(), chi.URLParam(r, "appId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// DeleteSchema handles DELETE /apps/{appId}/schema.
func (s *Server) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	if err := s.schemas.Delete(r.Context(), chi.URLParam(r, "appId")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubscriptionRequest is the body of POST and DELETE /subscriptions.
type SubscriptionRequest struct {
	DeviceID string         `json:"deviceId"`
	AppID    string         `json:"appId"`
	Model    string         `json:"model,omitempty"`
	UserID   string         `json:"userId,omitempty"`
	Filter   map[string]any `json:"filter,omitempty"`
}

// SubscriptionResponse names the channel a request resolved to.
type SubscriptionResponse struct {
	Channel     string `json:"channel"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (req SubscriptionRequest) toUsecase() subscriptionuc.Request {
	return subscriptionuc.Request{
		DeviceID: req.DeviceID,
		AppID:    req.AppID,
		Model:    req.Model,
		UserID:   req.UserID,
		Filter:   req.Filter,
	}
}

// Subscribe handles POST /subscriptions.
func (s *Server) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if !s.decode(w, r, &req) {
		return
	}

	ch, err := s.subscriptions.Subscribe(r.Context(), req.toUsecase())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubscriptionResponse{Channel: ch.String(), Fingerprint: ch.Fingerprint()})
}

// Unsubscribe handles DELETE /subscriptions.
func (s *Server) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if !s.decode(w, r, &req) {
		return
	}

	ch, err := s.subscriptions.Unsubscribe(r.Context(), req.toUsecase())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionResponse{Channel: ch.String(), Fingerprint: ch.Fingerprint()})
}

// PatchValidationResponse is returned for an accepted patch batch.
type PatchValidationResponse struct {
	Valid      bool `json:"valid"`
	Operations int  `json:"operations"`
}

// ValidatePatches handles POST /patches/validate. The body is an array of operations.
func (s *Server) ValidatePatches(w http.ResponseWriter, r *http.Request) {
	var ops []patch.Operation
	if !s.decode(w, r, &ops) {
		return
	}

	if err := s.mutations.ValidatePatch(r.Context(), ops); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PatchValidationResponse{Valid: true, Operations: len(ops)})
}

// PublishEvent handles POST /events.
func (s *Server) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var m event.Mutation
	if !s.decode(w, r, &m) {
		return
	}

	if err := s.mutations.Publish(r.Context(), m); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log, ok := logger.Lookup(r.Context())
	if !ok {
		log = s.logger
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
