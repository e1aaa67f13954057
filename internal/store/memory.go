package store

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/motorlot/apiserver/types"
)

// MemoryListingRepository keeps listings in process. It has the same
// semantics as ListingRepository, including merge updates.
type MemoryListingRepository struct {
	mu    sync.RWMutex
	items map[string]types.Listing
	now   func() time.Time
}

func NewMemoryListingRepository() *MemoryListingRepository {
	return &MemoryListingRepository{items: make(map[string]types.Listing), now: time.Now}
}

func (r *MemoryListingRepository) Insert(_ context.Context, listing types.Listing) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing.ID = uuid.NewString()
	listing.CreatedAt = r.now().UTC()
	listing.UpdatedAt = nil
	r.items[listing.ID] = cloneListing(listing)
	return listing, nil
}

func (r *MemoryListingRepository) Get(_ context.Context, id string) (types.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return types.Listing{}, ErrNotFound
	}
	return cloneListing(l), nil
}

func (r *MemoryListingRepository) GetMany(_ context.Context, ids []string) ([]types.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := r.items[id]; ok {
			out = append(out, cloneListing(l))
		}
	}
	sortNewest(out)
	return out, nil
}

func (r *MemoryListingRepository) List(_ context.Context, filter ListingFilter) ([]types.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Listing, 0, len(r.items))
	for _, l := range r.items {
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, cloneListing(l))
	}
	sortNewest(out)
	return out, nil
}

func (r *MemoryListingRepository) Update(_ context.Context, id string, fields Fields) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[id]
	if !ok {
		return types.Listing{}, ErrNotFound
	}

	doc := map[string]json.RawMessage{}
	raw, err := json.Marshal(current)
	if err != nil {
		return types.Listing{}, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.Listing{}, err
	}
	for key, value := range fields {
		switch key {
		case "id", "seller_id", "created_at":
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return types.Listing{}, err
		}
		doc[key] = encoded
	}
	doc["updated_at"], _ = json.Marshal(r.now().UTC())

	raw, err = json.Marshal(doc)
	if err != nil {
		return types.Listing{}, err
	}
	merged, err := decodeListing(raw)
	if err != nil {
		return types.Listing{}, err
	}
	r.items[id] = merged
	return cloneListing(merged), nil
}

func (r *MemoryListingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func sortNewest(ls []types.Listing) {
	slices.SortStableFunc(ls, func(a, b types.Listing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func cloneListing(l types.Listing) types.Listing {
	l.Images = slices.Clone(l.Images)
	l.Features.Safety = slices.Clone(l.Features.Safety)
	l.Features.Comfort = slices.Clone(l.Features.Comfort)
	l.Features.Interior = slices.Clone(l.Features.Interior)
	l.Features.Exterior = slices.Clone(l.Features.Exterior)
	return l
}

// MemoryUserRepository keeps users in process with the same uniqueness
// rules as UserRepository.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	items map[string]types.User
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{items: make(map[string]types.User), now: time.Now}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.items[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.items {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	email = strings.TrimSpace(email)
	return r.find(func(u types.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return types.User{}, ErrNotFound
	}
	return r.find(func(u types.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *MemoryUserRepository) List(context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, cloneUser(u))
	}
	slices.SortStableFunc(out, func(a, b types.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(user) {
		return types.User{}, ErrConflict
	}
	now := r.now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	r.items[user.ID] = cloneUser(user)
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if r.conflicts(user) {
		return types.User{}, ErrConflict
	}
	user.Favorites = current.Favorites
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.now().UTC()
	r.items[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) AddFavorite(_ context.Context, userID, listingID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if !slices.Contains(u.Favorites, listingID) {
		u.Favorites = append(slices.Clone(u.Favorites), listingID)
		u.UpdatedAt = r.now().UTC()
		r.items[userID] = u
	}
	return slices.Clone(u.Favorites), nil
}

func (r *MemoryUserRepository) RemoveFavorite(_ context.Context, userID, listingID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.Favorites = slices.DeleteFunc(slices.Clone(u.Favorites), func(id string) bool { return id == listingID })
	u.UpdatedAt = r.now().UTC()
	r.items[userID] = u
	return slices.Clone(u.Favorites), nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// conflicts reports whether another user holds user's email or username.
func (r *MemoryUserRepository) conflicts(user types.User) bool {
	for id, other := range r.items {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(other.Email, user.Email) {
			return true
		}
		if user.Username != "" && strings.EqualFold(other.Username, user.Username) {
			return true
		}
	}
	return false
}

func cloneUser(u types.User) types.User {
	u.Favorites = slices.Clone(u.Favorites)
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	if u.Dealership != nil {
		d := *u.Dealership
		d.ContactNumbers = slices.Clone(d.ContactNumbers)
		d.OpeningHours = slices.Clone(d.OpeningHours)
		u.Dealership = &d
	}
	return u
}
