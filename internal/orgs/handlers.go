package orgs

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrgHeader selects the organization a request acts on
const OrgHeader = "X-Org-ID"

// OrgIDFromRequest reads the active organization from the request header
func OrgIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(OrgHeader))
	if raw == "" {
		return uuid.Nil, apperrors.InvalidInput("%s header is required", OrgHeader)
	}
	orgID, err := uuid.Parse(raw)
	if err != nil || orgID == uuid.Nil {
		return uuid.Nil, apperrors.InvalidInput("%s header must be a valid organization ID", OrgHeader)
	}
	return orgID, nil
}

type MemberResponse struct {
	MembershipID uuid.UUID `json:"membershipId"`
	UserID       uuid.UUID `json:"userId"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Role         rbac.Role `json:"role"`
}

type AddMemberResponse struct {
	UserID          uuid.UUID `json:"userId"`
	MembershipID    uuid.UUID `json:"membershipId"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	Role            rbac.Role `json:"role"`
	IsNewUser       bool      `json:"isNewUser"`
	IsNewMembership bool      `json:"isNewMembership"`
	RoleChanged     bool      `json:"roleChanged"`
}

type UserOrgResponse struct {
	OrganizationID   uuid.UUID `json:"organizationId"`
	OrganizationName string    `json:"organizationName"`
	Role             rbac.Role `json:"role"`
}

// HandleListMembers handles GET /api/org-users
func HandleListMembers(svc *MembersService, authz *Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := OrgIDFromRequest(r)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid organization")
			return
		}

		if _, err := authz.RequireRole(ctx, userID, orgID, rbac.RoleAdmin); err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to check permissions")
			return
		}

		members, err := svc.ListMembers(ctx, orgID)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to list members")
			return
		}

		out := make([]MemberResponse, 0, len(members))
		for _, m := range members {
			item := MemberResponse{MembershipID: m.ID, UserID: m.UserID, Role: m.Role}
			if m.User != nil {
				item.Email = m.User.Email
				item.FullName = m.User.FullName
			}
			out = append(out, item)
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, out)
	}
}

// HandleAddOrUpdateMember handles POST /api/org-users. A newly created
// membership answers 201, an update or no-op answers 200.
func HandleAddOrUpdateMember(svc *MembersService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		orgID, err := OrgIDFromRequest(r)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid organization")
			return
		}

		var req AddMemberInput
		if err := validation.Decode(r, &req); err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid request body")
			return
		}

		res, err := svc.AddOrUpdateMember(ctx, actorUserID, orgID, req)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to add member")
			return
		}

		status := http.StatusOK
		if res.IsNewMembership {
			status = http.StatusCreated
		}

		apperrors.WriteSuccess(w, r, status, AddMemberResponse{
			UserID:          res.User.ID,
			MembershipID:    res.Membership.ID,
			Email:           res.User.Email,
			FullName:        res.User.FullName,
			Role:            res.Membership.Role,
			IsNewUser:       res.IsNewUser,
			IsNewMembership: res.IsNewMembership,
			RoleChanged:     res.RoleChanged,
		})
	}
}

// HandleRemoveMember handles DELETE /api/org-users/{membership_id}
func HandleRemoveMember(svc *MembersService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		orgID, err := OrgIDFromRequest(r)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid organization")
			return
		}

		membershipID, err := uuid.Parse(chi.URLParam(r, "membership_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid membership ID")
			return
		}

		if _, err := svc.RemoveMember(ctx, actorUserID, orgID, membershipID); err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to remove member")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"success": true,
		})
	}
}

// HandleMyOrganizations handles GET /api/me/organizations
func HandleMyOrganizations(svc *MembersService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		memberships, err := svc.ListUserOrganizations(ctx, auth.GetUserID(ctx))
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to list organizations")
			return
		}

		out := make([]UserOrgResponse, 0, len(memberships))
		for _, m := range memberships {
			item := UserOrgResponse{OrganizationID: m.OrgID, Role: m.Role}
			if m.Organization != nil {
				item.OrganizationName = m.Organization.Name
			}
			out = append(out, item)
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, out)
	}
}

// HandleListAudit handles GET /api/audit
func HandleListAudit(authz *Authorizer, reader *audit.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := OrgIDFromRequest(r)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid organization")
			return
		}

		if _, err := authz.RequireRole(ctx, userID, orgID, rbac.RoleAdmin); err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to check permissions")
			return
		}

		limit := audit.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				limit = v
			}
		}

		events, err := reader.ListByOrg(ctx, orgID, limit)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to list audit log")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": events,
		})
	}
}
