package v1handler

import (
	"net/http"
	"strings"

	"a11yscan/internal/plan"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"
)

// AddMemberRequest is the payload for inviting a team member. Role defaults
// to MEMBER.
type AddMemberRequest struct {
	Email string          `json:"email"`
	Role  domain.UserRole `json:"role,omitempty"`
}

// addMember adds a team member to the organization after the member admission
// check.
func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	org := GetOrganizationFromContext(r.Context())

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}
	if !strings.Contains(req.Email, "@") {
		h.writeError(w, r, serrors.With(serrors.ErrBadRequest, "invalid email"))

		return
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}
	if req.Role != domain.RoleOwner && req.Role != domain.RoleMember {
		h.writeError(w, r, serrors.With(serrors.ErrBadRequest, "invalid role %q", req.Role))

		return
	}

	if err := h.deps.Admission.CheckLimit(r.Context(), org, plan.ActionAddMember); err != nil {
		h.writeError(w, r, err)

		return
	}

	users, err := h.deps.Storage.StoreUsers(r.Context(), domain.User{
		OrganizationID: org.ID,
		Email:          req.Email,
		Role:           req.Role,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, users[0])
}
