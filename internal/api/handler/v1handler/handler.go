// Package v1handler implements the v1 HTTP handlers: websites, scans,
// schedules, members, the payment webhook and the cron-triggered sweeps.
// Semantic errors from the services are mapped onto HTTP status codes here.
package v1handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"a11yscan/internal/billing"
	"a11yscan/internal/plan"
	"a11yscan/internal/scan"
	"a11yscan/internal/sweep"
	"a11yscan/pkg/controller"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/ratelimit"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLimit is the page size used when the client does not pass one.
const DefaultLimit = 20

// Deps holds the collaborators the v1 handlers dispatch into.
type Deps struct {
	Storage   storage.Storage
	Scans     scan.Service
	Admission *plan.Admission
	Billing   *billing.Service
	Scheduler *sweep.Scheduler
	Expiry    *sweep.Expiry
}

// RateLimits configures the per-route request limits. A nil Counter or a
// non-positive limit disables the corresponding policy.
type RateLimits struct {
	// Counter backs all policies.
	Counter ratelimit.Counter
	// ScanStartPerMinute caps scan starts per organization per minute.
	ScanStartPerMinute int
	// WebhookPerMinute caps webhook deliveries per client IP per minute.
	WebhookPerMinute int
}

// Handler serves the v1 API.
type Handler struct {
	deps   Deps
	sec    *SecHandler
	limits RateLimits
}

// New creates a v1 Handler.
func New(deps Deps, sec *SecHandler, limits RateLimits) *Handler {
	return &Handler{deps: deps, sec: sec, limits: limits}
}

// Register mounts all v1 routes, the payment webhook and the cron triggers on
// the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /v1/websites", h.withAuth(h.createWebsite))
	mux.Handle("GET /v1/websites", h.withAuth(h.listWebsites))
	mux.Handle("DELETE /v1/websites/{id}", h.withAuth(h.deleteWebsite))

	mux.Handle("POST /v1/websites/{id}/scans", h.withAuth(h.withScanStartLimit(h.startScan)))
	mux.Handle("GET /v1/scans", h.withAuth(h.listScans))
	mux.Handle("GET /v1/scans/{id}", h.withAuth(h.getScan))
	mux.Handle("GET /v1/scans/{id}/status", h.withAuth(h.getScanStatus))
	mux.Handle("POST /v1/scans/{id}/restart", h.withAuth(h.restartScan))
	mux.Handle("POST /v1/scans/{id}/progress", h.withEngineToken(h.reportProgress))

	mux.Handle("POST /v1/schedules", h.withAuth(h.createSchedule))
	mux.Handle("GET /v1/schedules", h.withAuth(h.listSchedules))

	mux.Handle("POST /v1/members", h.withAuth(h.addMember))

	mux.Handle("POST /webhooks/payments", h.withWebhookLimit(h.paymentWebhook))

	mux.Handle("POST /cron/schedules", h.withCronSecret(h.runScheduleSweep))
	mux.Handle("POST /cron/expiry", h.withCronSecret(h.runExpirySweep))
}

// withAuth authenticates the request and stores the organization in the
// request context.
func (h *Handler) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := h.sec.Authenticate(r.Context(), r)
		if err != nil {
			h.writeError(w, r, err)

			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withEngineToken gates the engine callback.
func (h *Handler) withEngineToken(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.sec.CheckEngineToken(r); err != nil {
			h.writeError(w, r, err)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// withCronSecret gates the sweep triggers.
func (h *Handler) withCronSecret(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.sec.CheckCronSecret(r); err != nil {
			h.writeError(w, r, err)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// withScanStartLimit limits scan starts per organization. It must run inside
// withAuth so the organization is known.
func (h *Handler) withScanStartLimit(next http.HandlerFunc) http.HandlerFunc {
	if h.limits.Counter == nil {
		return next
	}

	limited := controller.WithRateLimit(h.limits.Counter, controller.LimitPolicy{
		Name:   "scan-start",
		Limit:  h.limits.ScanStartPerMinute,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			org := GetOrganizationFromContext(r.Context())
			if org.ID == (domain.OrganizationID{}) {
				return ""
			}

			return uuid.UUID(org.ID).String()
		},
	})(next)

	return limited.ServeHTTP
}

// withWebhookLimit limits webhook deliveries per client IP.
func (h *Handler) withWebhookLimit(next http.HandlerFunc) http.Handler {
	if h.limits.Counter == nil {
		return next
	}

	return controller.WithRateLimit(h.limits.Counter, controller.LimitPolicy{
		Name:    "payment-webhook",
		Limit:   h.limits.WebhookPerMinute,
		Window:  time.Minute,
		KeyFunc: controller.GetClientIP,
	})(next)
}

// ErrorResponse is the JSON body of error replies.
type ErrorResponse struct {
	// Code is the semantic error code.
	Code string `json:"code"`
	// Message is a human-readable explanation.
	Message string `json:"message"`
	// PlanType is set for plan-limit errors.
	PlanType string `json:"planType,omitempty"`
	// Limit is set for plan-limit errors.
	Limit int `json:"limit,omitempty"`
}

// writeError maps a service error onto an HTTP status code and JSON body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := ErrorResponse{Code: serrors.ErrInternal.Error(), Message: "internal error"}

	switch {
	case errors.Is(err, serrors.ErrPlanLimit):
		status = http.StatusForbidden
		body = ErrorResponse{Code: serrors.ErrPlanLimit.Error(), Message: err.Error()}
		var limitErr *plan.LimitError
		if errors.As(err, &limitErr) {
			body.PlanType = string(limitErr.Tier)
			body.Limit = limitErr.Limit
			body.Message = limitErr.Error()
		}
	case errors.Is(err, serrors.ErrNotFound):
		status = http.StatusNotFound
		body = ErrorResponse{Code: serrors.ErrNotFound.Error(), Message: err.Error()}
	case errors.Is(err, serrors.ErrBadRequest):
		status = http.StatusBadRequest
		body = ErrorResponse{Code: serrors.ErrBadRequest.Error(), Message: err.Error()}
	case errors.Is(err, serrors.ErrConflict):
		status = http.StatusConflict
		body = ErrorResponse{Code: serrors.ErrConflict.Error(), Message: err.Error()}
	case errors.Is(err, serrors.ErrUnauthorized):
		status = http.StatusUnauthorized
		body = ErrorResponse{Code: serrors.ErrUnauthorized.Error(), Message: "unauthorized"}
	case errors.Is(err, serrors.ErrForbidden):
		status = http.StatusForbidden
		body = ErrorResponse{Code: serrors.ErrForbidden.Error(), Message: err.Error()}
	case errors.Is(err, serrors.ErrRateLimited):
		status = http.StatusTooManyRequests
		body = ErrorResponse{Code: serrors.ErrRateLimited.Error(), Message: err.Error()}
	case errors.Is(err, serrors.ErrUnavailable):
		status = http.StatusServiceUnavailable
		body = ErrorResponse{Code: serrors.ErrUnavailable.Error(), Message: err.Error()}
	default:
		logger.Error(r.Context(), "request failed", zap.Error(err))
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON reads the request body into dst, rejecting malformed payloads.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "invalid request body")
	}

	return nil
}

// pathUUID parses the {id} path segment.
func pathUUID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, serrors.Wrap(serrors.ErrBadRequest, err, "invalid id")
	}

	return id, nil
}
