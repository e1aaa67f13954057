package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/motorlot/apiserver/internal/session"
	"github.com/motorlot/apiserver/internal/storage"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/types"
)

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeListings struct {
	mu      sync.Mutex
	seq     int
	items   map[string]types.Listing
	listErr error
}

func newFakeListings(ls ...types.Listing) *fakeListings {
	f := &fakeListings{items: make(map[string]types.Listing)}
	for _, l := range ls {
		f.items[l.ID] = l
	}
	return f
}

func (f *fakeListings) Insert(_ context.Context, l types.Listing) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	l.ID = fmt.Sprintf("listing-%d", f.seq)
	l.CreatedAt = testNow
	f.items[l.ID] = l
	return l, nil
}

func (f *fakeListings) Get(_ context.Context, id string) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.items[id]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	return l, nil
}

func (f *fakeListings) GetMany(_ context.Context, ids []string) ([]types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Listing{}
	for _, id := range ids {
		if l, ok := f.items[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListings) List(_ context.Context, filter store.ListingFilter) ([]types.Listing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Listing{}
	for _, l := range f.items {
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b types.Listing) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Update merges fields through JSON like the Postgres repository does.
func (f *fakeListings) Update(_ context.Context, id string, fields store.Fields) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.items[id]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	doc := map[string]any{}
	raw, _ := json.Marshal(l)
	_ = json.Unmarshal(raw, &doc)
	for k, v := range fields {
		doc[k] = v
	}
	doc["updated_at"] = testNow
	raw, err := json.Marshal(doc)
	if err != nil {
		return types.Listing{}, err
	}
	var merged types.Listing
	if err := json.Unmarshal(raw, &merged); err != nil {
		return types.Listing{}, err
	}
	f.items[id] = merged
	return merged, nil
}

func (f *fakeListings) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeUsers struct {
	mu    sync.Mutex
	seq   int
	items map[string]types.User
}

func newFakeUsers(us ...types.User) *fakeUsers {
	f := &fakeUsers{items: make(map[string]types.User)}
	for _, u := range us {
		if u.Favorites == nil {
			u.Favorites = []string{}
		}
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	u.Favorites = slices.Clone(u.Favorites)
	return u, nil
}

func (f *fakeUsers) find(match func(types.User) bool) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	return f.find(func(u types.User) bool { return strings.EqualFold(u.Email, strings.TrimSpace(email)) })
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return f.find(func(u types.User) bool {
		return u.Username != "" && strings.EqualFold(u.Username, strings.TrimSpace(username))
	})
}

func (f *fakeUsers) List(context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.User, 0, len(f.items))
	for _, u := range f.items {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Create(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	u.ID = fmt.Sprintf("user-%d", f.seq)
	u.Favorites = []string{}
	u.CreatedAt = testNow
	u.UpdatedAt = testNow
	f.items[u.ID] = u
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.items[u.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, other := range f.items {
		if id != u.ID && u.Username != "" && strings.EqualFold(other.Username, u.Username) {
			return types.User{}, store.ErrConflict
		}
	}
	u.Favorites = old.Favorites
	u.UpdatedAt = testNow
	f.items[u.ID] = u
	return u, nil
}

func (f *fakeUsers) AddFavorite(_ context.Context, userID, listingID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !slices.Contains(u.Favorites, listingID) {
		u.Favorites = append(u.Favorites, listingID)
	}
	f.items[userID] = u
	return slices.Clone(u.Favorites), nil
}

func (f *fakeUsers) RemoveFavorite(_ context.Context, userID, listingID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Favorites = slices.DeleteFunc(u.Favorites, func(id string) bool { return id == listingID })
	f.items[userID] = u
	return slices.Clone(u.Favorites), nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeUploader struct {
	err   error
	calls int
}

func (f *fakeUploader) UploadImages(_ context.Context, userID string, images []storage.Image, _ time.Time) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = fmt.Sprintf("https://cdn.test/listings/%s/%d-%s", userID, i, img.Filename)
	}
	return urls, nil
}

type fakeRecorder struct{ ok, failed int }

func (f *fakeRecorder) ImageUploaded(err error) {
	if err != nil {
		f.failed++
		return
	}
	f.ok++
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct{ to, subject, body string }

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []session.Event
}

func (f *fakePublisher) Publish(_ context.Context, evt session.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) types() []session.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}
