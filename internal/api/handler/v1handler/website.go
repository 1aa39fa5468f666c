package v1handler

import (
	"net/http"
	"net/url"

	"a11yscan/internal/plan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"
)

// CreateWebsiteRequest is the payload for registering a website.
type CreateWebsiteRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// WebsiteList is the response of the website listing endpoint.
type WebsiteList struct {
	Items []domain.Website `json:"items"`
}

// createWebsite registers a website for the organization after the website
// admission check.
func (h *Handler) createWebsite(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	var req CreateWebsiteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}
	if err := validateWebsiteURL(req.URL); err != nil {
		h.writeError(w, r, err)

		return
	}

	if err := h.deps.Admission.CheckLimit(r.Context(), org, plan.ActionAddWebsite); err != nil {
		h.writeError(w, r, err)

		return
	}

	sites, err := h.deps.Storage.StoreWebsites(r.Context(), domain.Website{
		OrganizationID: org.ID,
		URL:            req.URL,
		Name:           req.Name,
		Active:         true,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, sites[0])
}

// listWebsites returns the organization's live websites.
func (h *Handler) listWebsites(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	sites, err := h.deps.Storage.OrganizationWebsites(r.Context(), org.ID)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, WebsiteList{Items: sites})
}

// deleteWebsite soft-deletes a website. The row stays for scan history but no
// longer counts against the plan limit.
func (h *Handler) deleteWebsite(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	id, err := pathUUID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	site, err := h.deps.Storage.DeleteWebsite(r.Context(), org.ID, domain.WebsiteID(id))
	if err != nil {
		h.writeError(w, r, err)

		return
	}
	if site == nil {
		h.writeError(w, r, serrors.With(serrors.ErrNotFound, "website not found"))

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateWebsiteURL(raw string) error {
	if raw == "" {
		return serrors.With(serrors.ErrBadRequest, "url is required")
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return serrors.With(serrors.ErrBadRequest, "url must be an absolute http(s) URL")
	}

	return nil
}
