package v1handler

import (
	"net/http"
	"strconv"
	"time"

	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"
)

// StartScanRequest is the payload for starting a scan. Kind defaults to FULL.
type StartScanRequest struct {
	Kind domain.ScanKind `json:"kind,omitempty"`
}

// ScanStatusResponse is the lightweight status projection for client polling:
// lifecycle state plus counters, without the full result payload.
type ScanStatusResponse struct {
	ID           domain.ScanID       `json:"id"`
	Status       domain.ScanStatus   `json:"status"`
	Counters     domain.ScanCounters `json:"counters"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
}

func statusResponse(scan *domain.Scan) ScanStatusResponse {
	res := ScanStatusResponse{
		ID:           scan.ID,
		Status:       scan.Status,
		Counters:     scan.Counters,
		ErrorMessage: scan.ErrorMessage,
	}
	if !scan.CompletedAt.IsZero() {
		res.CompletedAt = &scan.CompletedAt
	}

	return res
}

// ScanList is the response of the scan listing endpoint.
type ScanList struct {
	Items      []domain.Scan `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// ProgressRequest is the engine's progress callback payload. Counter fields
// are merged into the stored counters when present.
type ProgressRequest struct {
	Status       domain.ScanStatus   `json:"status"`
	Counters     domain.ScanCounters `json:"counters"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`
}

// startScan starts a scan for the website in the path.
func (h *Handler) startScan(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	websiteID, err := pathUUID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	// an empty body means a full scan
	var req StartScanRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)

			return
		}
	}
	if req.Kind != "" && req.Kind != domain.ScanKindFull && req.Kind != domain.ScanKindQuick {
		h.writeError(w, r, serrors.With(serrors.ErrBadRequest, "invalid scan kind %q", req.Kind))

		return
	}

	scan, err := h.deps.Scans.Start(r.Context(), org,
		domain.WebsiteID(websiteID), domain.TriggerAPI, req.Kind)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, scan)
}

// getScan returns the full scan projection.
func (h *Handler) getScan(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	id, err := pathUUID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	scan, err := h.deps.Scans.Result(r.Context(), org.ID, domain.ScanID(id))
	if err != nil {
		h.writeError(w, r, err)

		return
	}
	// the full result exists only for completed scans; poll the status
	// endpoint until then
	if scan.Status != domain.ScanStatusCompleted {
		h.writeError(w, r, serrors.With(serrors.ErrConflict, "scan %s has not completed", id))

		return
	}

	writeJSON(w, http.StatusOK, scan)
}

// getScanStatus returns only the lifecycle state, for cheap polling.
func (h *Handler) getScanStatus(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	id, err := pathUUID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	scan, err := h.deps.Scans.Result(r.Context(), org.ID, domain.ScanID(id))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, statusResponse(scan))
}

// restartScan starts a fresh scan for the website of a finished scan.
func (h *Handler) restartScan(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	id, err := pathUUID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	scan, err := h.deps.Scans.Restart(r.Context(), org, domain.ScanID(id))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, scan)
}

// listScans returns a page of the organization's scans, newest first.
func (h *Handler) listScans(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	limit := uint(DefaultLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			h.writeError(w, r, serrors.With(serrors.ErrBadRequest, "invalid limit %q", raw))

			return
		}
		limit = uint(parsed)
	}

	scans, next, err := h.deps.Scans.OrganizationScans(r.Context(), org.ID,
		r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, ScanList{Items: scans, NextCursor: next})
}

// reportProgress is the engine's progress callback. It applies the report to
// the scan and answers with the updated status.
func (h *Handler) reportProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	var req ProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}

	scan, err := h.deps.Scans.ReportProgress(r.Context(), domain.ScanID(id), storage.ScanProgress{
		Status:       req.Status,
		Counters:     req.Counters,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, statusResponse(scan))
}
