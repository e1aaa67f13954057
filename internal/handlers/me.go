package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/motorlot/apiserver/types"
)

// MeHandler serves the signed-in user's dashboard, profile and watchlist.
type MeHandler struct {
	listings *services.ListingService
	users    *services.UserService
}

// NewMeHandler constructs a MeHandler.
func NewMeHandler(listings *services.ListingService, users *services.UserService) *MeHandler {
	return &MeHandler{listings: listings, users: users}
}

// MeRouter registers /me routes. Every route requires authentication.
func MeRouter(r chi.Router, h *MeHandler, auth *AuthHandler) {
	r.Use(auth.RequireAuth)
	r.Get("/listings", h.Inventory)
	r.Get("/profile", h.Profile)
	r.Patch("/profile", h.UpdateProfile)
	r.Get("/favorites", h.Favorites)
	r.Put("/favorites/{listingID}", h.AddFavorite)
	r.Delete("/favorites/{listingID}", h.RemoveFavorite)
	r.Post("/favorites/{listingID}/toggle", h.ToggleFavorite)
}

// FavoritesResponse carries the watchlist IDs after a change.
type FavoritesResponse struct {
	Favorites []string `json:"favorites"`
	Favorite  *bool    `json:"favorite,omitempty"`
}

// Inventory runs the dashboard view over the caller's own listings.
func (h *MeHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

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

	page, err := h.listings.Inventory(r.Context(), p.User.ID, status, st)
	writePage(w, page, err)
}

// Profile returns the stored profile rather than the token snapshot.
func (h *MeHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	user, err := h.users.GetByID(r.Context(), p.User.ID)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *MeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	var in services.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), p.User.ID, in)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *MeHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	listings, err := h.users.Favorites(r.Context(), p.User.ID)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to fetch favorites")
		return
	}
	if listings == nil {
		listings = []types.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *MeHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	favs, err := h.users.AddFavorite(r.Context(), p.User.ID, chi.URLParam(r, "listingID"))
	if err != nil {
		writeServiceError(w, err, "listing not found", "failed to add favorite")
		return
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Favorites: favs})
}

func (h *MeHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	favs, err := h.users.RemoveFavorite(r.Context(), p.User.ID, chi.URLParam(r, "listingID"))
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to remove favorite")
		return
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Favorites: favs})
}

func (h *MeHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	on, favs, err := h.users.ToggleFavorite(r.Context(), p.User.ID, chi.URLParam(r, "listingID"))
	if err != nil {
		writeServiceError(w, err, "listing not found", "failed to toggle favorite")
		return
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Favorites: favs, Favorite: &on})
}
