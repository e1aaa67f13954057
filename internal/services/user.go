package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/motorlot/apiserver/internal/cache"
	"github.com/motorlot/apiserver/internal/session"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/types"
	"go.uber.org/zap"
)

// usernameCacheTTL bounds how stale an availability answer can be.
const usernameCacheTTL = 30 * time.Second

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	AddFavorite(ctx context.Context, userID, listingID string) ([]string, error)
	RemoveFavorite(ctx context.Context, userID, listingID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// ListingLookup resolves listing IDs, skipping unknown ones.
type ListingLookup interface {
	GetMany(ctx context.Context, ids []string) ([]types.Listing, error)
}

// SessionPublisher announces session changes.
type SessionPublisher interface {
	Publish(ctx context.Context, evt session.Event) error
}

// ProfileInput is a partial edit of a user's own profile. Nil fields are
// left unchanged; an empty username clears it.
type ProfileInput struct {
	Name       *string           `json:"name,omitempty" validate:"omitempty,max=100"`
	Username   *string           `json:"username,omitempty" validate:"omitempty,username"`
	Phone      *string           `json:"phone,omitempty" validate:"omitempty,max=30"`
	Dealership *types.Dealership `json:"dealership,omitempty"`
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	listings ListingLookup
	cache    cache.Store
	sessions SessionPublisher
	validate *validator.Validate
	log      *zap.Logger
}

func NewUserService(
	repo UserRepository,
	listings ListingLookup,
	kv cache.Store,
	sessions SessionPublisher,
	log *zap.Logger,
) *UserService {
	return &UserService{
		repo:     repo,
		listings: listings,
		cache:    kv,
		sessions: sessions,
		validate: newValidator(),
		log:      log,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// UpdateProfile applies in to the user's profile. A username held by
// another account fails with ErrUsernameTaken and nothing is written.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (types.User, error) {
	if in.Username != nil {
		trimmed := strings.TrimSpace(*in.Username)
		in.Username = &trimmed
	}
	if err := s.validate.Struct(in); err != nil {
		return types.User{}, fromValidator(err)
	}
	if in.Dealership != nil && strings.TrimSpace(in.Dealership.Name) == "" {
		return types.User{}, invalid("dealership.name", "is required")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	previousUsername := user.Username

	if in.Username != nil && !strings.EqualFold(*in.Username, user.Username) && *in.Username != "" {
		owner, err := s.repo.GetByUsername(ctx, *in.Username)
		switch {
		case err == nil && owner.ID != userID:
			return types.User{}, ErrUsernameTaken
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return types.User{}, err
		}
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Dealership != nil {
		user.Dealership = in.Dealership
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, err
	}

	s.forgetUsernames(ctx, previousUsername, updated.Username)
	s.announce(ctx, updated)
	return updated, nil
}

// UsernameAvailable reports whether username is free for userID. The
// caller's own username counts as available.
func (s *UserService) UsernameAvailable(ctx context.Context, username, userID string) (bool, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return false, invalid("username", "must be 3-30 letters, digits, dots or underscores")
	}

	key := usernameKey(username)
	owner, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("username cache read failed", zap.Error(err))
		}
		user, err := s.repo.GetByUsername(ctx, username)
		switch {
		case err == nil:
			owner = user.ID
		case errors.Is(err, store.ErrNotFound):
			owner = ""
		default:
			return false, err
		}
		if err := s.cache.Set(ctx, key, owner, usernameCacheTTL); err != nil {
			s.log.Warn("username cache write failed", zap.Error(err))
		}
	}
	return owner == "" || owner == userID, nil
}

// Favorites returns the user's watchlist. IDs of deleted listings are
// dropped.
func (s *UserService) Favorites(ctx context.Context, userID string) ([]types.Listing, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.listings.GetMany(ctx, user.Favorites)
}

// AddFavorite adds a listing to the watchlist.
func (s *UserService) AddFavorite(ctx context.Context, userID, listingID string) ([]string, error) {
	found, err := s.listings.GetMany(ctx, []string{listingID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, store.ErrNotFound
	}
	return s.repo.AddFavorite(ctx, userID, listingID)
}

// RemoveFavorite removes a listing from the watchlist. Dangling IDs can
// be removed too.
func (s *UserService) RemoveFavorite(ctx context.Context, userID, listingID string) ([]string, error) {
	return s.repo.RemoveFavorite(ctx, userID, listingID)
}

// ToggleFavorite flips a listing's watchlist membership and reports
// whether it is now a favorite.
func (s *UserService) ToggleFavorite(ctx context.Context, userID, listingID string) (bool, []string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	if user.HasFavorite(listingID) {
		favs, err := s.RemoveFavorite(ctx, userID, listingID)
		return false, favs, err
	}
	favs, err := s.AddFavorite(ctx, userID, listingID)
	return err == nil, favs, err
}

// SetRole changes a user's role.
func (s *UserService) SetRole(ctx context.Context, userID, role string) (types.User, error) {
	if !slices.Contains([]string{types.RoleUser, types.RoleAdmin}, role) {
		return types.User{}, invalid("role", "must be one of %s %s", types.RoleUser, types.RoleAdmin)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, fmt.Errorf("set role: %w", err)
	}
	s.log.Info("user role changed", zap.String("user_id", userID), zap.String("role", role))
	s.announce(ctx, updated)
	return updated, nil
}

// Delete removes a user account. Their listings are kept.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.forgetUsernames(ctx, user.Username)
	if s.sessions != nil {
		if err := s.sessions.Publish(ctx, session.Event{Type: session.EventSignedOut, UserID: userID}); err != nil {
			s.log.Warn("failed to publish session event", zap.Error(err))
		}
	}
	return nil
}

func (s *UserService) announce(ctx context.Context, user types.User) {
	if s.sessions == nil {
		return
	}
	evt := session.Event{Type: session.EventProfileChanged, UserID: user.ID, User: &user}
	if err := s.sessions.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish session event", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *UserService) forgetUsernames(ctx context.Context, usernames ...string) {
	keys := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if strings.TrimSpace(u) != "" {
			keys = append(keys, usernameKey(u))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("username cache invalidation failed", zap.Error(err))
	}
}

func usernameKey(username string) string {
	return "username:" + strings.ToLower(strings.TrimSpace(username))
}
