package v1handler

import (
	"net/http"

	"a11yscan/internal/plan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"

	"github.com/google/uuid"
)

// CreateScheduleRequest is the payload for creating a scan schedule.
type CreateScheduleRequest struct {
	WebsiteID uuid.UUID        `json:"websiteId"`
	Frequency domain.Frequency `json:"frequency"`
}

// ScheduleList is the response of the schedule listing endpoint.
type ScheduleList struct {
	Items []domain.ScanSchedule `json:"items"`
}

// createSchedule creates a recurring audit for a website. The frequency must
// be one the organization's tier allows.
func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	var req CreateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}
	if !req.Frequency.Valid() {
		h.writeError(w, r, serrors.With(serrors.ErrBadRequest, "invalid frequency %q", req.Frequency))

		return
	}
	if !plan.FrequencyAllowed(org.PlanType, req.Frequency) {
		h.writeError(w, r, serrors.With(serrors.ErrForbidden,
			"the %s plan does not allow %s schedules", org.PlanType, req.Frequency))

		return
	}

	site, err := h.deps.Storage.WebsiteByID(r.Context(), org.ID, domain.WebsiteID(req.WebsiteID))
	if err != nil {
		h.writeError(w, r, err)

		return
	}
	if site == nil {
		h.writeError(w, r, serrors.With(serrors.ErrNotFound, "website not found"))

		return
	}

	schedules, err := h.deps.Storage.StoreSchedules(r.Context(), domain.ScanSchedule{
		WebsiteID:      site.ID,
		OrganizationID: org.ID,
		Frequency:      req.Frequency,
		Active:         true,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, schedules[0])
}

// listSchedules returns the organization's schedules.
func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	schedules, err := h.deps.Storage.OrganizationSchedules(r.Context(), org.ID)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, ScheduleList{Items: schedules})
}
