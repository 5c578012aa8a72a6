// Package http exposes the engine's operations as a JSON API. Handlers stay
// thin: decode, call the service, map the typed error. Authentication is an
// upstream concern; the engine trusts the asserted user ids.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tutorbase/engine/internal/model"
	"github.com/tutorbase/engine/internal/service"
	"go.uber.org/zap"
)

type Server struct {
	availability *service.AvailabilityService
	ledger       *service.LedgerService
	schedule     *service.ScheduleService
	sessions     *service.SessionService
	contracts    *service.ContractService
	logger       *zap.Logger
}

func NewServer(
	availability *service.AvailabilityService,
	ledger *service.LedgerService,
	scheduleSvc *service.ScheduleService,
	sessions *service.SessionService,
	contracts *service.ContractService,
	logger *zap.Logger,
) *Server {
	return &Server{
		availability: availability,
		ledger:       ledger,
		schedule:     scheduleSvc,
		sessions:     sessions,
		contracts:    contracts,
		logger:       logger,
	}
}

// Router builds the chi router for the engine API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/tutors/{tutorID}", func(r chi.Router) {
			r.Get("/slots", s.handleGenerateSlots)
			r.Get("/template", s.handleGetTemplate)
			r.Put("/template", s.handleSetTemplate)
			r.Get("/unavailability/preview", s.handlePreviewUnavailability)
			r.Post("/unavailability", s.handleDeclareUnavailable)
			r.Post("/unavailability/{periodID}/resume", s.handleResume)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleBook)
			r.Get("/{sessionID}", s.handleGetSession)
			r.Post("/{sessionID}/cancel", s.handleCancelSession)
			r.Post("/{sessionID}/start", s.handleStartSession)
			r.Post("/{sessionID}/complete", s.handleCompleteSession)
			r.Post("/{sessionID}/no-show", s.handleMarkNoShow)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", s.handleProposeContract)
			r.Get("/{contractID}", s.handleGetContract)
			r.Put("/{contractID}", s.handleEditContract)
			r.Post("/{contractID}/respond", s.handleRespondContract)
			r.Post("/{contractID}/cancel", s.handleCancelContract)
		})

		r.Get("/ledger", s.handleLedgerSummary)
		r.Post("/ledger/purchase", s.handleAddPurchase)

		r.Route("/students/{studentID}", func(r chi.Router) {
			r.Get("/sessions", s.handleStudentSessions)
			r.Get("/contracts", s.handleStudentContracts)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Shortfall int64  `json:"shortfall,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses:
// validation and empty-schedule are 400, insufficient credits is 402 with
// the shortfall, slot races and invalid transitions are 409.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *model.ValidationError
		slotTaken    *model.SlotUnavailableError
		insufficient *model.InsufficientCreditsError
		badState     *model.InvalidStateTransitionError
		emptySched   *model.EmptyScheduleError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
	case errors.As(err, &emptySched):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "empty_schedule"})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: err.Error(), Kind: "insufficient_credits", Shortfall: insufficient.Shortfall})
	case errors.As(err, &slotTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "slot_unavailable"})
	case errors.As(err, &badState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "invalid_state_transition"})
	default:
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "internal"})
	}
}
