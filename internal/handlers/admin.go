package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/motorlot/apiserver/types"
	"go.uber.org/zap"
)

// AdminHandler serves moderation and user management.
type AdminHandler struct {
	listings *services.ListingService
	users    *services.UserService
	log      *zap.Logger
}

func NewAdminHandler(listings *services.ListingService, users *services.UserService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{listings: listings, users: users, log: log}
}

// AdminRouter registers /admin routes behind authentication and the admin
// role check.
func AdminRouter(r chi.Router, h *AdminHandler, auth *AuthHandler) {
	r.Use(auth.RequireAuth, RequireAdmin)
	r.Get("/listings", h.Listings)
	r.Post("/listings/{listingID}/approve", h.transition(types.TransitionApprove))
	r.Post("/listings/{listingID}/reject", h.transition(types.TransitionReject))
	r.Put("/listings/{listingID}/featured", h.SetFeatured)
	r.Get("/users", h.Users)
	r.Put("/users/{userID}/role", h.SetRole)
	r.Delete("/users/{userID}", h.DeleteUser)
}

// FeaturedRequest sets the featured flag.
type FeaturedRequest struct {
	Featured bool `json:"featured"`
}

// RoleRequest sets a user's role.
type RoleRequest struct {
	Role string `json:"role"`
}

// Listings runs the moderation view, optionally narrowed by status.
func (h *AdminHandler) Listings(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := query.ParseState(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.listings.AdminList(r.Context(), status, st)
	writePage(w, page, err)
}

func (h *AdminHandler) transition(t types.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principalFromContext(r.Context())

		updated, err := h.listings.Transition(r.Context(), p.User, chi.URLParam(r, "listingID"), t)
		if err != nil {
			writeServiceError(w, err, "listing not found", "failed to moderate listing")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func (h *AdminHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	var req FeaturedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.listings.SetFeatured(r.Context(), chi.URLParam(r, "listingID"), req.Featured)
	if err != nil {
		writeServiceError(w, err, "listing not found", "failed to update listing")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.log.Error("failed to list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.users.SetRole(r.Context(), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id := chi.URLParam(r, "userID")
	if id == p.User.ID {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "user not found", "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
