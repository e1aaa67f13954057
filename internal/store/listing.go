package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/motorlot/apiserver/types"
)

// Fields is a partial document keyed by JSON field name. Update merges it
// into the stored document; a nil value clears the field.
type Fields map[string]any

// ListingFilter narrows a listing query by simple equality. Zero values
// impose no constraint. All other filtering happens in memory.
type ListingFilter struct {
	SellerID string
	Status   types.ListingStatus
}

// listingColumns are the listing row columns. Everything other than the
// indexed lookup fields lives in doc.
const listingColumns = `id, seller_id, status, doc, created_at`

// ListingRepository stores listings as JSONB documents. seller_id and
// status are mirrored into columns so they can be queried by equality.
type ListingRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db, now: time.Now}
}

// Insert assigns an ID and creation time and stores the listing.
func (r *ListingRepository) Insert(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.ID = uuid.NewString()
	listing.CreatedAt = r.now().UTC()
	listing.UpdatedAt = nil

	doc, err := json.Marshal(listing)
	if err != nil {
		return types.Listing{}, err
	}

	const query = `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.SellerID,
		string(listing.Status),
		doc,
		listing.CreatedAt,
	); err != nil {
		return types.Listing{}, translate(err)
	}
	return listing, nil
}

func (r *ListingRepository) Get(ctx context.Context, id string) (types.Listing, error) {
	const query = `SELECT doc FROM listings WHERE id = $1`
	var doc []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Listing{}, ErrNotFound
		}
		return types.Listing{}, err
	}
	return decodeListing(doc)
}

// List returns every listing matching filter, newest first.
func (r *ListingRepository) List(ctx context.Context, filter ListingFilter) ([]types.Listing, error) {
	var (
		conds []string
		args  []any
	)
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		conds = append(conds, "seller_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT doc FROM listings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]types.Listing, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		listing, err := decodeListing(doc)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetMany returns the listings with the given IDs. Unknown IDs are skipped.
func (r *ListingRepository) GetMany(ctx context.Context, ids []string) ([]types.Listing, error) {
	if len(ids) == 0 {
		return []types.Listing{}, nil
	}

	const query = `SELECT doc FROM listings WHERE id = ANY($1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]types.Listing, 0, len(ids))
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		listing, err := decodeListing(doc)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

// Update merges fields into the stored document and returns the result.
// updated_at is always set. The id, seller_id and created_at fields cannot
// be changed.
func (r *ListingRepository) Update(ctx context.Context, id string, fields Fields) (types.Listing, error) {
	patch := make(Fields, len(fields)+1)
	for key, value := range fields {
		switch key {
		case "id", "seller_id", "created_at":
			continue
		}
		patch[key] = value
	}
	patch["updated_at"] = r.now().UTC()

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return types.Listing{}, err
	}

	const query = `
		UPDATE listings
		SET doc = doc || $2::jsonb,
			status = COALESCE($2::jsonb ->> 'status', status)
		WHERE id = $1
		RETURNING doc`
	var doc []byte
	if err := r.db.QueryRowContext(ctx, query, id, patchJSON).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Listing{}, ErrNotFound
		}
		return types.Listing{}, translate(err)
	}
	return decodeListing(doc)
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM listings WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeListing(doc []byte) (types.Listing, error) {
	var listing types.Listing
	if err := json.Unmarshal(doc, &listing); err != nil {
		return types.Listing{}, err
	}
	return listing, nil
}
