package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/motorlot/apiserver/config"
	"github.com/motorlot/apiserver/internal/cache"
	"github.com/motorlot/apiserver/internal/mail"
	"github.com/motorlot/apiserver/internal/session"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/types"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL    = 24 * time.Hour
	resetTokenTTL      = time.Hour
	resetAttemptsLimit = 3
	resetAttemptWindow = time.Hour
)

// Claims are the JWT claims of a session token. The JTI identifies the
// session for revocation.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is an authenticated caller.
type Principal struct {
	User   types.User
	Claims Claims
}

// AuthResult is returned by Register and SignIn.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

// RegisterInput is the payload of account creation.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name,omitempty" validate:"max=100"`
}

// ResetInput completes a password reset.
type ResetInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// IdentityService issues, verifies and revokes session tokens and runs
// the password reset flow.
type IdentityService struct {
	users        UserRepository
	cache        cache.Store
	resetLimiter *cache.RateLimiter
	mailer       mail.Sender
	sessions     SessionPublisher
	validate     *validator.Validate
	log          *zap.Logger
	secret       []byte
	tokenTTL     time.Duration
	resetURL     string
	now          func() time.Time
}

func NewIdentityService(
	users UserRepository,
	kv cache.Store,
	mailer mail.Sender,
	sessions SessionPublisher,
	log *zap.Logger,
	cfg config.AuthConfig,
) (*IdentityService, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &IdentityService{
		users:        users,
		cache:        kv,
		resetLimiter: cache.NewRateLimiter(kv, "password_reset", resetAttemptsLimit, resetAttemptWindow),
		mailer:       mailer,
		sessions:     sessions,
		validate:     newValidator(),
		log:          log,
		secret:       []byte(secret),
		tokenTTL:     ttl,
		resetURL:     cfg.ResetURL,
		now:          time.Now,
	}, nil
}

// Register creates an account with the user role and signs it in.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return AuthResult{}, fromValidator(err)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("account created", zap.String("user_id", user.ID))
	return s.startSession(ctx, user)
}

// SignIn verifies credentials and issues a session token.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

// SignOut revokes the session until its token would have expired.
func (s *IdentityService) SignOut(ctx context.Context, p Principal) error {
	ttl := time.Minute
	if p.Claims.ExpiresAt != nil {
		ttl = p.Claims.ExpiresAt.Sub(s.now())
	}
	if ttl > 0 {
		if err := s.cache.Set(ctx, revokedKey(p.Claims.ID), "1", ttl); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	s.publish(ctx, session.Event{Type: session.EventSignedOut, UserID: p.User.ID})
	return nil
}

// Authenticate verifies a token and loads its user. Expired, revoked and
// malformed tokens, and tokens of deleted users, fail with
// ErrUnauthenticated.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	if _, err := s.cache.Get(ctx, revokedKey(claims.ID)); err == nil {
		return Principal{}, ErrUnauthenticated
	} else if !errors.Is(err, cache.ErrMiss) {
		return Principal{}, fmt.Errorf("check revocation: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("load user: %w", err)
	}
	return Principal{User: user, Claims: claims}, nil
}

// RequestPasswordReset mails a reset link when email belongs to an
// account. Unknown emails succeed silently; repeated requests for one
// email fail with ErrRateLimited.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return invalid("email", "is required")
	}

	allowed, err := s.resetLimiter.Allow(ctx, email)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, resetKey(token), user.ID, resetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.resetURL + "?token=" + url.QueryEscape(token)
	if err := s.mailer.Send(ctx, user.Email, "Reset your Motorlot password", mail.PasswordResetBody(user.Name, link)); err != nil {
		s.log.Error("failed to send password reset email", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using a token from
// RequestPasswordReset. Tokens are single use.
func (s *IdentityService) ResetPassword(ctx context.Context, in ResetInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fromValidator(err)
	}

	key := resetKey(in.Token)
	userID, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrInvalidResetToken
		}
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hashed)
	if _, err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete used reset token", zap.Error(err))
	}
	if err := s.resetLimiter.Reset(ctx, strings.ToLower(user.Email)); err != nil {
		s.log.Warn("failed to reset rate limit", zap.Error(err))
	}
	s.log.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *IdentityService) startSession(ctx context.Context, user types.User) (AuthResult, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return AuthResult{}, fmt.Errorf("sign token: %w", err)
	}

	s.publish(ctx, session.Event{Type: session.EventSignedIn, UserID: user.ID, User: &user})
	return AuthResult{Token: token, ExpiresAt: expires.UTC(), User: user}, nil
}

func (s *IdentityService) parse(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return Claims{}, errors.New("missing subject or id")
	}
	return claims, nil
}

func (s *IdentityService) publish(ctx context.Context, evt session.Event) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish session event",
			zap.String("type", string(evt.Type)),
			zap.String("user_id", evt.UserID),
			zap.Error(err),
		)
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func revokedKey(jti string) string { return "session:revoked:" + jti }

func resetKey(token string) string { return "password_reset:" + token }
