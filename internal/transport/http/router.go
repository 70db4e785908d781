// Package httpapi exposes the application over HTTP: a chi router, JSON
// handlers and the error-to-status mapping.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifeline/internal/donor"
	"lifeline/internal/hospital"
	"lifeline/internal/matching"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/platform/middleware"
	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/requestcontext"
)

const requestTimeout = 30 * time.Second

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	requests    *request.Service
	donors      *donor.Service
	hospitals   *hospital.Service
	coordinator *matching.Coordinator
	logger      *slog.Logger
}

func NewHandler(
	requests *request.Service,
	donors *donor.Service,
	hospitals *hospital.Service,
	coordinator *matching.Coordinator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		requests:    requests,
		donors:      donors,
		hospitals:   hospitals,
		coordinator: coordinator,
		logger:      logger,
	}
}

// NewRouter builds the full route tree. Role gates follow the principals:
// hospital staff submit and cancel, blood bank managers decide, donors
// respond.
func NewRouter(h *Handler, validator middleware.JWTValidator, m *metrics.Metrics, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(validator, logger))

		// Hospital staff.
		api.Group(func(staff chi.Router) {
			staff.Use(middleware.RequireRole(logger, id.RoleHospitalStaff))
			staff.Post("/requests", h.handleSubmitRequest)
			staff.Get("/requests", h.handleListHospitalRequests)
			staff.Post("/requests/{requestID}/cancel", h.handleCancelRequest)
		})

		// Blood bank managers.
		api.Group(func(manager chi.Router) {
			manager.Use(middleware.RequireRole(logger, id.RoleBloodBankManager))
			manager.Get("/requests/pending", h.handleListPendingRequests)
			manager.Post("/requests/{requestID}/approve", h.handleApproveRequest)
			manager.Post("/requests/{requestID}/reject", h.handleRejectRequest)
			manager.Post("/hospitals", h.handleRegisterHospital)
			manager.Patch("/hospitals/{hospitalID}/status", h.handleSetHospitalStatus)
		})

		// Staff and managers share the read surface.
		api.Group(func(readers chi.Router) {
			readers.Use(middleware.RequireRole(logger, id.RoleHospitalStaff, id.RoleBloodBankManager))
			readers.Get("/requests/{requestID}", h.handleGetRequest)
			readers.Get("/donors", h.handleListDonors)
			readers.Get("/donors/{donorID}", h.handleGetDonor)
			readers.Get("/hospitals/{hospitalID}", h.handleGetHospital)
		})

		// Donors.
		api.Group(func(donors chi.Router) {
			donors.Use(middleware.RequireRole(logger, id.RoleDonor))
			donors.Post("/me/donor", h.handleRegisterDonor)
			donors.Get("/me/donor", h.handleGetMyDonor)
			donors.Patch("/me/donor", h.handleUpdateMyDonor)
			donors.Get("/me/donations", h.handleMyDonations)
			donors.Get("/me/notifications", h.handleMyNotifications)
			donors.Post("/notifications/{notificationID}/respond", h.handleRespond)
		})
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerDonorID requires a donor identity in the JWT claims.
func (h *Handler) callerDonorID(w http.ResponseWriter, ctx context.Context) (id.DonorID, bool) {
	donorID := requestcontext.DonorID(ctx)
	if donorID.IsNil() {
		writeError(w, dErrors.New(dErrors.CodeForbidden, "no donor profile associated with this account"))
		return id.DonorID{}, false
	}
	return donorID, true
}

func (h *Handler) logError(ctx context.Context, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op,
			"request_id", requestcontext.RequestID(ctx), "error", err)
		return
	}
	h.logger.WarnContext(ctx, op,
		"request_id", requestcontext.RequestID(ctx), "error", err)
}
