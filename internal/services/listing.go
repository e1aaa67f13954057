package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/motorlot/apiserver/config"
	"github.com/motorlot/apiserver/internal/storage"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/motorlot/apiserver/types"
	"go.uber.org/zap"
)

const defaultMaxImages = 10

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	Insert(ctx context.Context, listing types.Listing) (types.Listing, error)
	Get(ctx context.Context, id string) (types.Listing, error)
	GetMany(ctx context.Context, ids []string) ([]types.Listing, error)
	List(ctx context.Context, filter store.ListingFilter) ([]types.Listing, error)
	Update(ctx context.Context, id string, fields store.Fields) (types.Listing, error)
	Delete(ctx context.Context, id string) error
}

// ImageUploader stores listing photos and returns their public URLs.
type ImageUploader interface {
	UploadImages(ctx context.Context, userID string, images []storage.Image, now time.Time) ([]string, error)
}

// UploadRecorder counts image uploads.
type UploadRecorder interface {
	ImageUploaded(err error)
}

// ListingInput is the seller-supplied content of a new listing. Price must
// be present but may be zero.
type ListingInput struct {
	Title        string         `json:"title" validate:"required,max=120"`
	Make         string         `json:"make" validate:"required,vehicle_make"`
	Model        string         `json:"model" validate:"required,max=60"`
	BodyType     string         `json:"body_type" validate:"required,body_type"`
	Condition    string         `json:"condition" validate:"required,condition"`
	Transmission string         `json:"transmission" validate:"required,transmission"`
	FuelType     string         `json:"fuel_type" validate:"required,fuel_type"`
	Year         int            `json:"year" validate:"required,model_year"`
	Price        *int64         `json:"price" validate:"required,gte=0"`
	Mileage      *int64         `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	EngineSize   string         `json:"engine_size,omitempty" validate:"max=30"`
	Description  string         `json:"description" validate:"required,max=5000"`
	Color        string         `json:"color,omitempty" validate:"max=30"`
	VIN          string         `json:"vin,omitempty" validate:"omitempty,len=17,alphanum"`
	Features     types.Features `json:"features"`
}

// ListingPatch is a partial edit of a listing's content. Nil fields are
// left unchanged. Status and featured are changed through transitions.
type ListingPatch struct {
	Title        *string         `json:"title,omitempty" validate:"omitempty,min=1,max=120"`
	Make         *string         `json:"make,omitempty" validate:"omitempty,vehicle_make"`
	Model        *string         `json:"model,omitempty" validate:"omitempty,min=1,max=60"`
	BodyType     *string         `json:"body_type,omitempty" validate:"omitempty,body_type"`
	Condition    *string         `json:"condition,omitempty" validate:"omitempty,condition"`
	Transmission *string         `json:"transmission,omitempty" validate:"omitempty,transmission"`
	FuelType     *string         `json:"fuel_type,omitempty" validate:"omitempty,fuel_type"`
	Year         *int            `json:"year,omitempty" validate:"omitempty,model_year"`
	Price        *int64          `json:"price,omitempty" validate:"omitempty,gte=0"`
	Mileage      *int64          `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	EngineSize   *string         `json:"engine_size,omitempty" validate:"omitempty,max=30"`
	Description  *string         `json:"description,omitempty" validate:"omitempty,min=1,max=5000"`
	Color        *string         `json:"color,omitempty" validate:"omitempty,max=30"`
	VIN          *string         `json:"vin,omitempty" validate:"omitempty,len=17,alphanum"`
	Features     *types.Features `json:"features,omitempty"`
	Images       *[]string       `json:"images,omitempty"`
}

func (p ListingPatch) fields() store.Fields {
	fields := store.Fields{}
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = strings.TrimSpace(*v)
		}
	}
	setString("title", p.Title)
	setString("make", p.Make)
	setString("model", p.Model)
	setString("body_type", p.BodyType)
	setString("condition", p.Condition)
	setString("transmission", p.Transmission)
	setString("fuel_type", p.FuelType)
	setString("engine_size", p.EngineSize)
	setString("description", p.Description)
	setString("color", p.Color)
	setString("vin", p.VIN)
	if p.Year != nil {
		fields["year"] = *p.Year
	}
	if p.Price != nil {
		fields["price"] = *p.Price
	}
	if p.Mileage != nil {
		fields["mileage"] = *p.Mileage
	}
	if p.Features != nil {
		fields["features"] = *p.Features
	}
	if p.Images != nil {
		fields["images"] = *p.Images
	}
	return fields
}

// ListingService encapsulates listing use-cases. Every list view runs
// through the same query engine.
type ListingService struct {
	repo        ListingRepository
	images      ImageUploader
	engine      *query.Engine
	validate    *validator.Validate
	recorder    UploadRecorder
	log         *zap.Logger
	autoApprove bool
	maxImages   int
	now         func() time.Time
}

func NewListingService(
	repo ListingRepository,
	images ImageUploader,
	engine *query.Engine,
	recorder UploadRecorder,
	log *zap.Logger,
	cfg config.ListingsConfig,
) *ListingService {
	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}
	return &ListingService{
		repo:        repo,
		images:      images,
		engine:      engine,
		validate:    newValidator(),
		recorder:    recorder,
		log:         log,
		autoApprove: cfg.AutoApprove,
		maxImages:   maxImages,
		now:         time.Now,
	}
}

// Browse runs the public view: every listing, narrowed to visible ones.
// A failed fetch is logged and yields an empty page alongside the error.
func (s *ListingService) Browse(ctx context.Context, st query.State) (query.Page, error) {
	listings, err := s.repo.List(ctx, store.ListingFilter{})
	if err != nil {
		s.log.Error("failed to fetch listings", zap.Error(err))
		return query.Paginate(nil, st.Page, st.PageSize), fmt.Errorf("fetch listings: %w", err)
	}
	return s.engine.Run(query.ViewBrowse, listings, st), nil
}

// Inventory runs the dashboard view over the seller's own listings in any
// status, optionally narrowed to one status.
func (s *ListingService) Inventory(ctx context.Context, sellerID string, status types.ListingStatus, st query.State) (query.Page, error) {
	listings, err := s.repo.List(ctx, store.ListingFilter{SellerID: sellerID, Status: status})
	if err != nil {
		s.log.Error("failed to fetch inventory", zap.String("seller_id", sellerID), zap.Error(err))
		return query.Paginate(nil, st.Page, st.PageSize), fmt.Errorf("fetch inventory: %w", err)
	}
	return s.engine.Run(query.ViewDashboard, listings, st), nil
}

// AdminList runs the moderation view over all listings, optionally
// narrowed to one status.
func (s *ListingService) AdminList(ctx context.Context, status types.ListingStatus, st query.State) (query.Page, error) {
	listings, err := s.repo.List(ctx, store.ListingFilter{Status: status})
	if err != nil {
		s.log.Error("failed to fetch listings for moderation", zap.Error(err))
		return query.Paginate(nil, st.Page, st.PageSize), fmt.Errorf("fetch listings: %w", err)
	}
	return s.engine.Run(query.ViewAdmin, listings, st), nil
}

// Get returns a listing. Listings hidden from the public are only returned
// to their seller and to admins; anyone else gets store.ErrNotFound.
func (s *ListingService) Get(ctx context.Context, id string, viewer *types.User) (types.Listing, error) {
	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Listing{}, err
	}
	if query.Visible(listing, s.now()) {
		return listing, nil
	}
	if viewer != nil && (viewer.IsAdmin() || listing.OwnedBy(viewer.ID)) {
		return listing, nil
	}
	return types.Listing{}, store.ErrNotFound
}

// MaxImages is the most photos a listing may carry.
func (s *ListingService) MaxImages() int {
	return s.maxImages
}

// Create validates in, uploads images in order and stores the listing.
// Images already uploaded stay in storage if a later step fails.
func (s *ListingService) Create(ctx context.Context, seller types.User, in ListingInput, images []storage.Image) (types.Listing, error) {
	if err := s.validate.Struct(in); err != nil {
		return types.Listing{}, fromValidator(err)
	}
	switch {
	case len(images) == 0:
		return types.Listing{}, invalid("images", "at least one image is required")
	case len(images) > s.maxImages:
		return types.Listing{}, invalid("images", "at most %d images are allowed", s.maxImages)
	}

	now := s.now()
	urls, err := s.images.UploadImages(ctx, seller.ID, images, now)
	if s.recorder != nil {
		for range urls {
			s.recorder.ImageUploaded(nil)
		}
		if err != nil {
			s.recorder.ImageUploaded(err)
		}
	}
	if err != nil {
		s.log.Error("image upload failed",
			zap.String("seller_id", seller.ID),
			zap.Int("uploaded", len(urls)),
			zap.Int("total", len(images)),
			zap.Error(err),
		)
		return types.Listing{}, fmt.Errorf("upload images: %w", err)
	}

	status := types.StatusPending
	if s.autoApprove {
		status = types.StatusApproved
	}

	listing := types.Listing{
		Title:        strings.TrimSpace(in.Title),
		Make:         strings.TrimSpace(in.Make),
		Model:        strings.TrimSpace(in.Model),
		BodyType:     strings.TrimSpace(in.BodyType),
		Condition:    strings.TrimSpace(in.Condition),
		Transmission: strings.TrimSpace(in.Transmission),
		FuelType:     strings.TrimSpace(in.FuelType),
		Year:         in.Year,
		Price:        *in.Price,
		Mileage:      in.Mileage,
		EngineSize:   strings.TrimSpace(in.EngineSize),
		Description:  strings.TrimSpace(in.Description),
		Color:        strings.TrimSpace(in.Color),
		VIN:          strings.ToUpper(strings.TrimSpace(in.VIN)),
		Images:       urls,
		Features:     in.Features,
		Status:       status,
		SellerID:     seller.ID,
		SellerEmail:  seller.Email,
	}

	created, err := s.repo.Insert(ctx, listing)
	if err != nil {
		s.log.Error("listing write failed after upload",
			zap.String("seller_id", seller.ID),
			zap.Strings("images", urls),
			zap.Error(err),
		)
		return types.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return created, nil
}

// Update applies a content patch. Only the seller may edit; anyone else
// gets store.ErrNotFound.
func (s *ListingService) Update(ctx context.Context, actor types.User, id string, patch ListingPatch) (types.Listing, error) {
	if err := s.validate.Struct(patch); err != nil {
		return types.Listing{}, fromValidator(err)
	}
	if patch.Images != nil {
		n := len(*patch.Images)
		if n == 0 {
			return types.Listing{}, invalid("images", "at least one image is required")
		}
		if n > s.maxImages {
			return types.Listing{}, invalid("images", "at most %d images are allowed", s.maxImages)
		}
	}

	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Listing{}, err
	}
	if !listing.OwnedBy(actor.ID) {
		return types.Listing{}, store.ErrNotFound
	}

	fields := patch.fields()
	if len(fields) == 0 {
		return listing, nil
	}
	return s.repo.Update(ctx, id, fields)
}

// Delete removes a listing. Sellers delete their own listings, admins any.
func (s *ListingService) Delete(ctx context.Context, actor types.User, id string) error {
	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !listing.OwnedBy(actor.ID) {
		return store.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Transition changes a listing's status. Approve and reject require an
// admin. Seller transitions are open to the seller and to admins; other
// callers get store.ErrNotFound.
func (s *ListingService) Transition(ctx context.Context, actor types.User, id string, t types.Transition) (types.Listing, error) {
	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Listing{}, err
	}

	if t.AdminOnly() {
		if !actor.IsAdmin() {
			return types.Listing{}, ErrForbidden
		}
	} else if !actor.IsAdmin() && !listing.OwnedBy(actor.ID) {
		return types.Listing{}, store.ErrNotFound
	}

	next, err := t.Apply(listing, s.now().UTC())
	if err != nil {
		return types.Listing{}, fmt.Errorf("%s from %s: %w", t, listing.Status, err)
	}

	updated, err := s.repo.Update(ctx, id, store.Fields{
		"status":  next.Status,
		"sold_at": next.SoldAt,
	})
	if err != nil {
		return types.Listing{}, err
	}
	s.log.Info("listing status changed",
		zap.String("listing_id", id),
		zap.String("actor_id", actor.ID),
		zap.String("from", string(listing.Status)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

// SetFeatured sets the admin-controlled featured flag.
func (s *ListingService) SetFeatured(ctx context.Context, id string, featured bool) (types.Listing, error) {
	return s.repo.Update(ctx, id, store.Fields{"featured": featured})
}

// Lookup returns the listings with the given IDs, skipping unknown ones.
func (s *ListingService) Lookup(ctx context.Context, ids []string) ([]types.Listing, error) {
	return s.repo.GetMany(ctx, ids)
}

// IsNotFound reports whether err means the listing does not exist or is
// not visible to the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
