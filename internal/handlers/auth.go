package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/internal/session"
	"go.uber.org/zap"
)

// AuthHandler provides the identity endpoints.
type AuthHandler struct {
	identity *services.IdentityService
	hub      *session.Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewAuthHandler constructs an AuthHandler. Websocket origins are checked
// against allowedOrigins; an empty list allows any origin.
func NewAuthHandler(identity *services.IdentityService, hub *session.Hub, log *zap.Logger, allowedOrigins []string) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		hub:      hub,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/password-reset", h.RequestPasswordReset)
	r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
	r.Get("/session/stream", h.SessionStream)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

// RequireAuth rejects requests without a valid bearer token and injects
// the principal into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.authenticate(r)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthenticated) {
				h.log.Error("authentication failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// OptionalAuth injects the principal when a valid token is present and
// otherwise serves the request anonymously.
func (h *AuthHandler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := h.authenticate(r); err == nil {
			r = r.WithContext(withPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !p.User.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.identity.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "not found", "failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, "not found", "failed to authenticate")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	if err := h.identity.SignOut(r.Context(), p); err != nil {
		h.log.Error("sign out failed", zap.String("user_id", p.User.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	writeJSON(w, http.StatusOK, p.User)
}

// RequestPasswordReset always answers 202 for well-formed requests so that
// callers cannot probe which emails have accounts.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.identity.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, err, "not found", "failed to send reset email")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.ResetInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.identity.ResetPassword(r.Context(), req); err != nil {
		writeServiceError(w, err, "not found", "failed to reset password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionStream upgrades to a websocket that sends the current session
// snapshot and then every session event of the signed-in user. Browsers
// cannot set headers on websocket requests, so the token may also be
// passed as the "token" query parameter.
func (h *AuthHandler) SessionStream(w http.ResponseWriter, r *http.Request) {
	p, err := h.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	events, cancel := h.hub.Subscribe(p.User.ID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", p.User.ID), zap.Error(err))
		return
	}

	h.log.Debug("session stream opened", zap.String("user_id", p.User.ID))
	session.Serve(conn, session.Snapshot(p.User, time.Now().UTC()), events, h.log)
	h.log.Debug("session stream closed", zap.String("user_id", p.User.ID))
}

func (h *AuthHandler) authenticate(r *http.Request) (services.Principal, error) {
	token, err := bearerToken(r)
	if err != nil {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" || !websocket.IsWebSocketUpgrade(r) {
			return services.Principal{}, services.ErrUnauthenticated
		}
	}
	return h.identity.Authenticate(r.Context(), token)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
