package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/motorlot/apiserver/config"
	"github.com/motorlot/apiserver/internal/cache"
	"github.com/motorlot/apiserver/internal/mail"
	"github.com/motorlot/apiserver/internal/mq"
	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/internal/session"
	"github.com/motorlot/apiserver/internal/storage"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/motorlot/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingListings struct {
	*store.MemoryListingRepository
}

func (failingListings) List(context.Context, store.ListingFilter) ([]types.Listing, error) {
	return nil, errors.New("connection refused")
}

type testEnv struct {
	server   *httptest.Server
	listings *store.MemoryListingRepository
	users    *store.MemoryUserRepository
	blobs    *storage.Memory
	bus      *mq.Local

	listingHandler *ListingHandler
}

func newTestEnv(t *testing.T, wrap func(*store.MemoryListingRepository) services.ListingRepository) *testEnv {
	t.Helper()
	log := zap.NewNop()

	env := &testEnv{
		listings: store.NewMemoryListingRepository(),
		users:    store.NewMemoryUserRepository(),
		blobs:    storage.NewMemory("motorlot"),
		bus:      mq.NewLocal(),
	}
	var listingRepo services.ListingRepository = env.listings
	if wrap != nil {
		listingRepo = wrap(env.listings)
	}

	kv := cache.NewMemory()
	hub := session.NewHub(mq.New(env.bus), log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	require.Eventually(t, func() bool { return env.bus.Subscribers(session.Channel) == 1 }, time.Second, 5*time.Millisecond)

	listingService := services.NewListingService(listingRepo, storage.NewStorage(env.blobs, "https://cdn.example.com"), query.NewEngine(), nil, log, config.ListingsConfig{MaxImages: 3})
	userService := services.NewUserService(env.users, listingRepo, kv, hub, log)
	identity, err := services.NewIdentityService(env.users, kv, mail.NewLogSender(log), hub, log, config.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)

	auth := NewAuthHandler(identity, hub, log, nil)
	env.listingHandler = NewListingHandler(listingService, log)
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Get("/taxonomy", Taxonomy)
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, auth) })
	r.Route("/listings", func(r chi.Router) { ListingRouter(r, env.listingHandler, auth) })
	r.Route("/me", func(r chi.Router) { MeRouter(r, NewMeHandler(listingService, userService), auth) })
	r.Route("/users", func(r chi.Router) { UserRouter(r, NewUserHandler(userService), auth) })
	r.Route("/admin", func(r chi.Router) { AdminRouter(r, NewAdminHandler(listingService, userService, log), auth) })

	env.server = httptest.NewServer(r)
	t.Cleanup(func() {
		env.server.Close()
		cancel()
		<-done
	})
	return env
}

// register creates an account and returns its token and ID.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var res services.AuthResult
	require.NoError(t, json.Unmarshal(body, &res))
	return res.Token, res.User.ID
}

func (e *testEnv) promote(t *testing.T, userID string) {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	u.Role = types.RoleAdmin
	_, err = e.users.Update(context.Background(), u)
	require.NoError(t, err)
}

func (e *testEnv) seed(t *testing.T, l types.Listing) types.Listing {
	t.Helper()
	created, err := e.listings.Insert(context.Background(), l)
	require.NoError(t, err)
	return created
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type imagePart struct {
	name        string
	contentType string
}

func listingForm(t *testing.T, fields map[string]any, images ...imagePart) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fields != nil {
		data, err := json.Marshal(fields)
		require.NoError(t, err)
		require.NoError(t, w.WriteField("listing", string(data)))
	}
	for _, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images[]"; filename=%q`, img.name))
		h.Set("Content-Type", img.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func validFields() map[string]any {
	return map[string]any{
		"title":        "2019 Toyota Corolla",
		"make":         "Toyota",
		"model":        "Corolla",
		"body_type":    "Sedan",
		"condition":    "Good",
		"transmission": "Automatic",
		"fuel_type":    "Gasoline",
		"year":         2019,
		"price":        18000,
		"description":  "One owner.",
	}
}

func decodePage(t *testing.T, body []byte) PageResponse {
	t.Helper()
	var page PageResponse
	require.NoError(t, json.Unmarshal(body, &page))
	return page
}

func TestHealthzAndTaxonomy(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/taxonomy", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tax types.Taxonomy
	require.NoError(t, json.Unmarshal(body, &tax))
	assert.Contains(t, tax.Makes, "Toyota")
}

func TestBrowseShowsOnlyVisibleListings(t *testing.T) {
	env := newTestEnv(t, nil)
	approved := env.seed(t, types.Listing{Title: "Civic", Make: "Honda", Price: 9000, Status: types.StatusApproved, SellerID: "s1"})
	env.seed(t, types.Listing{Title: "Accord", Make: "Honda", Price: 12000, Status: types.StatusPending, SellerID: "s1"})
	env.seed(t, types.Listing{Title: "Golf", Make: "Volkswagen", Price: 8000, Status: types.StatusApproved, SellerID: "s2"})

	resp, body := env.do(t, http.MethodGet, "/listings?make=honda", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodePage(t, body)
	require.Len(t, page.Items, 1)
	assert.Equal(t, approved.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, query.DefaultPageSize, page.PageSize)

	resp, body = env.do(t, http.MethodGet, "/listings?sort=price_asc", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = decodePage(t, body)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Golf", page.Items[0].Title)

	resp, _ = env.do(t, http.MethodGet, "/listings?min_price=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBrowseFetchFailureReturnsEmptyPage(t *testing.T) {
	env := newTestEnv(t, func(m *store.MemoryListingRepository) services.ListingRepository {
		return failingListings{m}
	})

	resp, body := env.do(t, http.MethodGet, "/listings", "", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	page := decodePage(t, body)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.NotEmpty(t, page.Error)
}

func TestGetHiddenListing(t *testing.T) {
	env := newTestEnv(t, nil)
	sellerToken, sellerID := env.register(t, "seller@example.com")
	otherToken, _ := env.register(t, "other@example.com")
	pending := env.seed(t, types.Listing{Title: "Accord", Status: types.StatusPending, SellerID: sellerID})

	resp, _ := env.do(t, http.MethodGet, "/listings/"+pending.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/listings/"+pending.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/listings/"+pending.ID, sellerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateListing(t *testing.T) {
	env := newTestEnv(t, nil)
	token, sellerID := env.register(t, "seller@example.com")

	body, contentType := listingForm(t, validFields(),
		imagePart{"front.jpg", "image/jpeg"},
		imagePart{"back.png", "image/png"},
	)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/listings", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, data := env.send(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var created types.Listing
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, types.StatusPending, created.Status)
	assert.Equal(t, sellerID, created.SellerID)
	assert.Equal(t, "seller@example.com", created.SellerEmail)
	require.Len(t, created.Images, 2)
	assert.True(t, strings.HasPrefix(created.Images[0], "https://cdn.example.com/listings/"+sellerID+"/"))
	assert.True(t, strings.HasSuffix(created.Images[0], "-0.jpg"))
	assert.True(t, strings.HasSuffix(created.Images[1], "-1.png"))
	assert.Equal(t, 2, env.blobs.Len())
}

func TestCreateListingRejectsBadUploads(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "seller@example.com")

	tests := []struct {
		name   string
		fields map[string]any
		images []imagePart
	}{
		{"no images", validFields(), nil},
		{"too many images", validFields(), []imagePart{
			{"1.jpg", "image/jpeg"}, {"2.jpg", "image/jpeg"}, {"3.jpg", "image/jpeg"}, {"4.jpg", "image/jpeg"},
		}},
		{"not an image", validFields(), []imagePart{{"notes.txt", "text/plain"}}},
		{"missing fields", nil, []imagePart{{"1.jpg", "image/jpeg"}}},
		{"missing title", func() map[string]any { f := validFields(); delete(f, "title"); return f }(), []imagePart{{"1.jpg", "image/jpeg"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := listingForm(t, tt.fields, tt.images...)
			req, err := http.NewRequest(http.MethodPost, env.server.URL+"/listings", body)
			require.NoError(t, err)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, data := env.send(t, req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
		})
	}
	assert.Equal(t, 0, env.blobs.Len())
}

func TestCreateListingBodyLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "seller@example.com")
	assert.Equal(t, int64(3*maxImageBytes+maxFormFieldBytes), env.listingHandler.maxBody)
	env.listingHandler.maxBody = 1 << 10

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	data, err := json.Marshal(validFields())
	require.NoError(t, err)
	require.NoError(t, w.WriteField("listing", string(data)))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="images[]"; filename="huge.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, 4<<10))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/listings", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, _ := env.send(t, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, 0, env.blobs.Len())
	stored, err := env.listings.List(context.Background(), store.ListingFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCreateListingRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := listingForm(t, validFields(), imagePart{"1.jpg", "image/jpeg"})
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/listings", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, _ := env.send(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	sellerToken, sellerID := env.register(t, "seller@example.com")
	otherToken, _ := env.register(t, "other@example.com")
	l := env.seed(t, types.Listing{Title: "Civic", Price: 9000, Status: types.StatusApproved, SellerID: sellerID})

	resp, _ := env.do(t, http.MethodPatch, "/listings/"+l.ID, otherToken, map[string]any{"price": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodPatch, "/listings/"+l.ID, sellerToken, map[string]any{"price": 8500})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated types.Listing
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, int64(8500), updated.Price)
	assert.Equal(t, "Civic", updated.Title)

	resp, _ = env.do(t, http.MethodPatch, "/listings/"+l.ID, sellerToken, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "status is not patchable")

	resp, _ = env.do(t, http.MethodDelete, "/listings/"+l.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/listings/"+l.ID, sellerToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSellerTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	token, sellerID := env.register(t, "seller@example.com")
	l := env.seed(t, types.Listing{Title: "Civic", Status: types.StatusApproved, SellerID: sellerID})

	resp, body := env.do(t, http.MethodPost, "/listings/"+l.ID+"/sold", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var sold types.Listing
	require.NoError(t, json.Unmarshal(body, &sold))
	assert.Equal(t, types.StatusSold, sold.Status)
	assert.NotNil(t, sold.SoldAt)

	resp, _ = env.do(t, http.MethodPost, "/listings/"+l.ID+"/sold", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/listings/"+l.ID+"/available", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var available types.Listing
	require.NoError(t, json.Unmarshal(body, &available))
	assert.Equal(t, types.StatusApproved, available.Status)
	assert.Nil(t, available.SoldAt)

	resp, _ = env.do(t, http.MethodPost, "/listings/"+l.ID+"/archive", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/listings/"+l.ID+"/unarchive", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rejected := env.seed(t, types.Listing{Title: "Accord", Status: types.StatusRejected, SellerID: sellerID})
	resp, _ = env.do(t, http.MethodPost, "/listings/"+rejected.ID+"/archive", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	stored, err := env.listings.Get(context.Background(), rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, stored.Status)
}

func TestDashboardInventory(t *testing.T) {
	env := newTestEnv(t, nil)
	token, sellerID := env.register(t, "seller@example.com")
	env.seed(t, types.Listing{Title: "A", Status: types.StatusApproved, SellerID: sellerID})
	env.seed(t, types.Listing{Title: "B", Status: types.StatusPending, SellerID: sellerID})
	env.seed(t, types.Listing{Title: "C", Status: types.StatusRejected, SellerID: sellerID})
	env.seed(t, types.Listing{Title: "D", Status: types.StatusApproved, SellerID: "someone-else"})

	resp, body := env.do(t, http.MethodGet, "/me/listings", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decodePage(t, body).Total)

	resp, body = env.do(t, http.MethodGet, "/me/listings?status=pending", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodePage(t, body)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "B", page.Items[0].Title)

	resp, _ = env.do(t, http.MethodGet, "/me/listings?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	userToken, userID := env.register(t, "user@example.com")
	adminToken, adminID := env.register(t, "admin@example.com")
	env.promote(t, adminID)
	l := env.seed(t, types.Listing{Title: "Civic", Status: types.StatusPending, SellerID: userID})

	resp, _ := env.do(t, http.MethodGet, "/admin/listings", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/admin/listings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/admin/listings?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodePage(t, body).Total)

	resp, _ = env.do(t, http.MethodPost, "/admin/listings/"+l.ID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/admin/listings/"+l.ID+"/reject", adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/admin/listings/"+l.ID+"/featured", adminToken, FeaturedRequest{Featured: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var featured types.Listing
	require.NoError(t, json.Unmarshal(body, &featured))
	assert.True(t, featured.Featured)
	assert.Equal(t, types.StatusApproved, featured.Status)

	resp, body = env.do(t, http.MethodGet, "/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []types.User
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Len(t, users, 2)

	resp, _ = env.do(t, http.MethodPut, "/admin/users/"+userID+"/role", adminToken, RoleRequest{Role: "superuser"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPut, "/admin/users/"+userID+"/role", adminToken, RoleRequest{Role: types.RoleAdmin})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/admin/users/"+adminID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/admin/users/"+userID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/auth/me", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.register(t, "buyer@example.com")
	l := env.seed(t, types.Listing{Title: "Civic", Status: types.StatusApproved, SellerID: "s1"})

	resp, _ := env.do(t, http.MethodPut, "/me/favorites/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/me/favorites/"+l.ID+"/toggle", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled FavoritesResponse
	require.NoError(t, json.Unmarshal(body, &toggled))
	require.NotNil(t, toggled.Favorite)
	assert.True(t, *toggled.Favorite)
	assert.Equal(t, []string{l.ID}, toggled.Favorites)

	resp, body = env.do(t, http.MethodGet, "/me/favorites", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var favs []types.Listing
	require.NoError(t, json.Unmarshal(body, &favs))
	require.Len(t, favs, 1)

	require.NoError(t, env.listings.Delete(context.Background(), l.ID))
	resp, body = env.do(t, http.MethodGet, "/me/favorites", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	resp, body = env.do(t, http.MethodDelete, "/me/favorites/"+l.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"favorites":[]}`, string(body))
}

func TestProfileAndUsernameAvailability(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceToken, _ := env.register(t, "alice@example.com")
	bobToken, _ := env.register(t, "bob@example.com")

	resp, body := env.do(t, http.MethodGet, "/users/username-available?username=alice_w", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"username":"alice_w","available":true}`, string(body))

	resp, body = env.do(t, http.MethodPatch, "/me/profile", aliceToken, map[string]any{"username": "alice_w", "name": "Alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodGet, "/users/username-available?username=ALICE_W", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"username":"ALICE_W","available":false}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/users/username-available?username=alice_w", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"username":"alice_w","available":true}`, string(body))

	resp, _ = env.do(t, http.MethodPatch, "/me/profile", bobToken, map[string]any{"username": "Alice_W"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/users/username-available?username=a", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/me/profile", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me types.User
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, "alice_w", me.Username)
	assert.Equal(t, "Alice", me.Name)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice@example.com")

	resp, _ := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "alice@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res services.AuthResult
	require.NoError(t, json.Unmarshal(body, &res))

	resp, _ = env.do(t, http.MethodGet, "/auth/me", res.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/logout", res.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/auth/me", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/password-reset", "", PasswordResetRequest{Email: "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", services.ResetInput{Token: "bogus", Password: "password456"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionStream(t *testing.T) {
	env := newTestEnv(t, nil)
	token, userID := env.register(t, "alice@example.com")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/auth/session/stream?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var first session.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, session.EventSnapshot, first.Type)
	assert.Equal(t, userID, first.UserID)

	r, _ := env.do(t, http.MethodPatch, "/me/profile", token, map[string]any{"name": "Alice"})
	require.Equal(t, http.StatusOK, r.StatusCode)

	var changed session.Event
	require.NoError(t, conn.ReadJSON(&changed))
	assert.Equal(t, session.EventProfileChanged, changed.Type)
	require.NotNil(t, changed.User)
	assert.Equal(t, "Alice", changed.User.Name)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.server.URL, "http")+"/auth/session/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
