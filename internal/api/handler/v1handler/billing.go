package v1handler

import (
	"encoding/json"
	"net/http"
	"time"

	"a11yscan/internal/sweep"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/metrics"

	"go.uber.org/zap"
)

// paymentNotification is the opaque webhook body: only the payment id, the
// payment itself is always re-fetched from the processor.
type paymentNotification struct {
	ID string `json:"id"`
}

// paymentWebhook handles payment processor notifications. It always answers
// 200 once the delivery is syntactically valid so the processor does not
// retry failures we have already logged.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	paymentID := h.paymentID(r)
	if paymentID == "" {
		metrics.PaymentWebhooks.WithLabelValues("rejected").Inc()
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	if err := h.deps.Billing.ProcessNotification(r.Context(), paymentID); err != nil {
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		logger.Error(r.Context(), "could not process payment notification",
			zap.String("paymentID", paymentID),
			zap.Error(err))
	} else {
		metrics.PaymentWebhooks.WithLabelValues("ok").Inc()
	}

	w.WriteHeader(http.StatusOK)
}

// paymentID extracts the payment id from either a form-encoded or a JSON
// delivery.
func (h *Handler) paymentID(r *http.Request) string {
	if r.Header.Get("Content-Type") == "application/json" {
		var body paymentNotification
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ""
		}

		return body.ID
	}

	if err := r.ParseForm(); err != nil {
		return ""
	}

	return r.PostFormValue("id")
}

// ScheduleSweepResponse is the JSON summary of one scheduling sweep pass.
type ScheduleSweepResponse struct {
	Scheduled int               `json:"scheduled"`
	Skipped   int               `json:"skipped"`
	Errors    []sweep.ItemError `json:"errors,omitempty"`
}

// ExpirySweepResponse is the JSON summary of one expiry sweep pass.
type ExpirySweepResponse struct {
	Downgraded int               `json:"downgraded"`
	Skipped    int               `json:"skipped"`
	Errors     []sweep.ItemError `json:"errors,omitempty"`
}

// runScheduleSweep dispatches all due schedules.
func (h *Handler) runScheduleSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Scheduler.RunSchedules(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, ScheduleSweepResponse{
		Scheduled: summary.Processed,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
	})
}

// runExpirySweep downgrades all lapsed organizations.
func (h *Handler) runExpirySweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Expiry.RunExpiry(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, ExpirySweepResponse{
		Downgraded: summary.Processed,
		Skipped:    summary.Skipped,
		Errors:     summary.Errors,
	})
}
