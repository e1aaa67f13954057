package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/internal/storage"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/motorlot/apiserver/types"
	"go.uber.org/zap"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 10 << 20
	maxFormFieldBytes  = 1 << 20
	formFieldListing   = "listing"
	formFieldImages    = "images[]"
	formFieldImagesAlt = "images"
)

// ListingHandler provides HTTP handlers for listings.
type ListingHandler struct {
	listings *services.ListingService
	log      *zap.Logger
	// maxBody caps a listing upload: every allowed image at full size plus
	// the form fields.
	maxBody int64
}

// NewListingHandler constructs a ListingHandler.
func NewListingHandler(listings *services.ListingService, log *zap.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		log:      log,
		maxBody:  int64(listings.MaxImages())*maxImageBytes + maxFormFieldBytes,
	}
}

// ListingRouter registers listing routes on the given router.
func ListingRouter(r chi.Router, h *ListingHandler, auth *AuthHandler) {
	r.Get("/", h.Browse)
	r.With(auth.RequireAuth).Post("/", h.Create)
	r.Route("/{listingID}", func(r chi.Router) {
		r.With(auth.OptionalAuth).Get("/", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/sold", h.transition(types.TransitionMarkSold))
			r.Post("/available", h.transition(types.TransitionMarkAvailable))
			r.Post("/archive", h.transition(types.TransitionArchive))
			r.Post("/unarchive", h.transition(types.TransitionUnarchive))
		})
	})
}

// PageResponse is a page of listings. Error is set when the listings
// could not be fetched; Items is then empty.
type PageResponse struct {
	query.Page
	Error string `json:"error,omitempty"`
}

// Browse runs the public view over the query-string state.
func (h *ListingHandler) Browse(w http.ResponseWriter, r *http.Request) {
	st, err := query.ParseState(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.listings.Browse(r.Context(), st)
	writePage(w, page, err)
}

func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), chi.URLParam(r, "listingID"), viewerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "listing not found", "failed to fetch listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// Create accepts a multipart form with the listing fields as JSON in the
// "listing" part and the photos, in display order, under "images[]".
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	in, files, err := parseListingForm(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	images, closeAll, err := openImages(files)
	defer closeAll()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.listings.Create(r.Context(), p.User, in, images)
	if err != nil {
		writeServiceError(w, err, "listing not found", "failed to create listing")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	var patch services.ListingPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.listings.Update(r.Context(), p.User, chi.URLParam(r, "listingID"), patch)
	if err != nil {
		writeServiceError(w, err, "listing not found", "failed to update listing")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	if err := h.listings.Delete(r.Context(), p.User, chi.URLParam(r, "listingID")); err != nil {
		writeServiceError(w, err, "listing not found", "failed to delete listing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) transition(t types.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principalFromContext(r.Context())

		updated, err := h.listings.Transition(r.Context(), p.User, chi.URLParam(r, "listingID"), t)
		if err != nil {
			writeServiceError(w, err, "listing not found", "failed to update listing status")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// writePage answers with the page, or with a 500 carrying an empty page
// and the error message when the fetch failed.
func writePage(w http.ResponseWriter, page query.Page, err error) {
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, PageResponse{Page: page, Error: "failed to fetch listings"})
		return
	}
	writeJSON(w, http.StatusOK, PageResponse{Page: page})
}

// parseStatus reads the optional status filter.
func parseStatus(r *http.Request) (types.ListingStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return "", nil
	}
	status := types.ListingStatus(strings.ToLower(raw))
	if !status.Valid() {
		return "", errors.New("invalid status")
	}
	return status, nil
}

func parseListingForm(r *http.Request) (services.ListingInput, []*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.ListingInput{}, nil, err
		}
		return services.ListingInput{}, nil, errors.New("invalid multipart form")
	}

	raw := strings.TrimSpace(r.FormValue(formFieldListing))
	if raw == "" {
		return services.ListingInput{}, nil, errors.New("listing fields are required")
	}
	var in services.ListingInput
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return services.ListingInput{}, nil, errors.New("invalid listing fields")
	}

	files := r.MultipartForm.File[formFieldImages]
	if len(files) == 0 {
		files = r.MultipartForm.File[formFieldImagesAlt]
	}
	return in, files, nil
}

// openImages opens every uploaded file in order. The returned func closes
// whatever was opened and is safe to call on error.
func openImages(files []*multipart.FileHeader) ([]storage.Image, func(), error) {
	opened := make([]multipart.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	images := make([]storage.Image, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageBytes {
			return nil, closeAll, errors.New("image " + fh.Filename + " is too large")
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "image/") {
			return nil, closeAll, errors.New("file " + fh.Filename + " is not an image")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, errors.New("failed to read upload")
		}
		opened = append(opened, f)
		images = append(images, storage.Image{
			Filename:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        f,
		})
	}
	return images, closeAll, nil
}
