package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"familytasks/internal/models"
	"familytasks/internal/service"
)

const maxBodyBytes = 1 << 20

// FamilyHandler serves family lifecycle and membership endpoints
type FamilyHandler struct {
	families   *service.FamilyService
	membership *service.MembershipService
	logger     zerolog.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(families *service.FamilyService, membership *service.MembershipService, logger zerolog.Logger) *FamilyHandler {
	return &FamilyHandler{
		families:   families,
		membership: membership,
		logger:     logger,
	}
}

// decodeBody reads a JSON request body into v, writing a 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithKind(w, http.StatusBadRequest, KindBadRequest, "Request body must be valid JSON.")
		return false
	}
	return true
}

type createFamilyRequest struct {
	Name      string `json:"name"`
	IsPremium bool   `json:"is_premium"`
}

// CreateFamily handles POST /families
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req createFamilyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	family, err := h.families.CreateFamily(r.Context(), GetCallerFromContext(r.Context()), req.Name, req.IsPremium)
	if err != nil {
		respondWithError(w, h.logger, "create family failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, newFamilyView(family))
}

// GetMyFamily handles GET /families/me
func (h *FamilyHandler) GetMyFamily(w http.ResponseWriter, r *http.Request) {
	family, err := h.families.GetMyFamily(r.Context(), GetCallerFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, "get own family failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newFamilyView(family))
}

// GetFamily handles GET /families/{id}
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	family, err := h.families.GetFamily(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "get family failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newFamilyView(family))
}

type updateFamilyRequest struct {
	Name       *string `json:"name"`
	MaxMembers *int    `json:"max_members"`
}

// UpdateFamily handles PATCH /families/{id}
func (h *FamilyHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req updateFamilyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	patch := models.FamilyPatch{Name: req.Name, MaxMembers: req.MaxMembers}
	family, err := h.families.UpdateFamily(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		respondWithError(w, h.logger, "update family failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newFamilyView(family))
}

// RegenerateInviteCode handles POST /families/{id}/invite-code
func (h *FamilyHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.families.RegenerateInviteCode(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "regenerate invite code failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invite_code": code})
}

// GetFamilyMembers handles GET /families/{id}/members
func (h *FamilyHandler) GetFamilyMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.families.GetFamilyMembers(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "list members failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newMemberViews(members))
}

type joinFamilyRequest struct {
	InviteCode string `json:"invite_code"`
	Role       string `json:"role"`
}

// JoinFamily handles POST /families/join
func (h *FamilyHandler) JoinFamily(w http.ResponseWriter, r *http.Request) {
	var req joinFamilyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Unknown roles pass through so the engine reports INVALID_ROLE
	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	family, err := h.membership.JoinFamily(r.Context(), GetCallerFromContext(r.Context()), req.InviteCode, role)
	if err != nil {
		respondWithError(w, h.logger, "join family failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newFamilyView(family))
}

// LeaveFamily handles POST /families/leave
func (h *FamilyHandler) LeaveFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.membership.LeaveFamily(r.Context(), GetCallerFromContext(r.Context())); err != nil {
		respondWithError(w, h.logger, "leave family failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /families/{id}/members/{userId}
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	result, err := h.membership.RemoveFamilyMember(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"), r.PathValue("userId"))
	if err != nil {
		respondWithError(w, h.logger, "remove member failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newRemovalView(result))
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeMemberRole handles PUT /families/{id}/members/{userId}/role
func (h *FamilyHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	err := h.membership.ChangeMemberRole(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"), r.PathValue("userId"), role)
	if err != nil {
		respondWithError(w, h.logger, "change role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
