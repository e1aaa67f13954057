package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/motorlot/apiserver/internal/services"
)

// UserHandler serves public user lookups.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers /users routes.
func UserRouter(r chi.Router, h *UserHandler, auth *AuthHandler) {
	r.With(auth.OptionalAuth).Get("/username-available", h.UsernameAvailable)
}

// UsernameAvailability echoes the username the answer was computed for so
// clients can match responses to their current input.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// UsernameAvailable reports whether a username is free. A signed-in
// caller's own username counts as available.
func (h *UserHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	var userID string
	if viewer := viewerFromContext(r.Context()); viewer != nil {
		userID = viewer.ID
	}

	available, err := h.users.UsernameAvailable(r.Context(), username, userID)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to check username")
		return
	}
	writeJSON(w, http.StatusOK, UsernameAvailability{Username: username, Available: available})
}
