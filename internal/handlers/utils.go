package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

const maxJSONBody = 1 << 20

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withPrincipal(ctx context.Context, p services.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, p)
}

func principalFromContext(ctx context.Context) (services.Principal, bool) {
	p, ok := ctx.Value(contextPrincipalKey).(services.Principal)
	return p, ok
}

// viewerFromContext returns the signed-in user, or nil for anonymous
// requests.
func viewerFromContext(ctx context.Context) *types.User {
	p, ok := principalFromContext(ctx)
	if !ok {
		return nil
	}
	return &p.User
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// writeServiceError maps service and store errors onto status codes.
// notFound is the message used for store.ErrNotFound.
func writeServiceError(w http.ResponseWriter, err error, notFound, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
