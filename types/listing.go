package types

import "time"

// Listing represents a single vehicle-for-sale record.
// It holds the vehicle classification, its numeric facts, media,
// moderation state and ownership metadata.
type Listing struct {
	// ID is the opaque identifier assigned by the store on insert.
	ID string `json:"id" db:"id"`

	// Title is the headline shown on listing cards.
	Title string `json:"title" db:"title"`

	// Make is the manufacturer, one of Makes or "Other".
	Make string `json:"make" db:"make"`

	// Model is the free-text model name (e.g., "Corolla").
	Model string `json:"model" db:"model"`

	// BodyType is one of BodyTypes or "Other".
	BodyType string `json:"body_type" db:"body_type"`

	// Condition is one of Conditions or "Other".
	Condition string `json:"condition" db:"condition"`

	// Transmission is one of Transmissions or "Other".
	Transmission string `json:"transmission" db:"transmission"`

	// FuelType is one of FuelTypes or "Other".
	FuelType string `json:"fuel_type" db:"fuel_type"`

	// Year is the model year. Plausible values run from 1900 to next year.
	Year int `json:"year" db:"year"`

	// Price is the asking price in whole currency units.
	Price int64 `json:"price" db:"price"`

	// Mileage is the odometer reading. Nil when the seller did not provide it.
	Mileage *int64 `json:"mileage,omitempty" db:"mileage"`

	// EngineSize is free text such as "2.0L" or "V8".
	EngineSize string `json:"engine_size" db:"engine_size"`

	// Description is the seller's free-form write-up.
	Description string `json:"description" db:"description"`

	// Color is the exterior color as entered by the seller.
	Color string `json:"color" db:"color"`

	// VIN is the optional vehicle identification number.
	VIN string `json:"vin,omitempty" db:"vin"`

	// Images is the ordered list of public image URLs. The first entry
	// is the cover image.
	Images []string `json:"images" db:"images"`

	// Features groups the free-text feature tags selected by the seller.
	Features Features `json:"features" db:"features"`

	// Status is the moderation and lifecycle state of the listing.
	Status ListingStatus `json:"status" db:"status"`

	// Featured promotes the listing to highlighted placement. Only
	// administrators change it and it is independent of Status.
	Featured bool `json:"featured" db:"featured"`

	// SellerID is the ID of the user who owns the listing.
	SellerID string `json:"seller_id" db:"seller_id"`

	// SellerEmail is a snapshot of the seller's email at creation time.
	// It is not updated when the seller later changes their email.
	SellerEmail string `json:"seller_email" db:"seller_email"`

	// CreatedAt is the timestamp at which the listing was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update, if any.
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// SoldAt is set when the listing is marked sold and cleared when it
	// is marked available again.
	SoldAt *time.Time `json:"sold_at,omitempty" db:"sold_at"`
}

// Features holds the four multi-select feature tag groups of a listing.
type Features struct {
	Safety   []string `json:"safety" db:"safety"`
	Comfort  []string `json:"comfort" db:"comfort"`
	Interior []string `json:"interior" db:"interior"`
	Exterior []string `json:"exterior" db:"exterior"`
}

// CoverImage returns the first image URL, or "" when the listing has none.
func (l Listing) CoverImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

// OwnedBy reports whether userID is the listing's seller.
func (l Listing) OwnedBy(userID string) bool {
	return userID != "" && l.SellerID == userID
}
