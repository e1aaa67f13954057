package types

import "time"

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the marketplace.
// It contains identity, role, watchlist and optional profile metadata.
type User struct {
	// ID is the identity of the account, assigned at sign-up.
	ID string `json:"id" db:"id"`

	// Email is the sign-in address of the account.
	Email string `json:"email" db:"email"`

	// Username is the optional, globally unique public handle.
	Username string `json:"username,omitempty" db:"username"`

	// Name is the user's display or full name.
	Name string `json:"name,omitempty" db:"name"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Role indicates the user's authorization level ("user" or "admin").
	Role string `json:"role" db:"role"`

	// Favorites is the user's watchlist of listing IDs. IDs of deleted
	// listings may remain here; readers drop them.
	Favorites []string `json:"favorites" db:"favorites"`

	// Dealership holds optional dealer metadata shown on the seller page.
	Dealership *Dealership `json:"dealership,omitempty" db:"dealership"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasFavorite reports whether listingID is on the user's watchlist.
func (u User) HasFavorite(listingID string) bool {
	for _, id := range u.Favorites {
		if id == listingID {
			return true
		}
	}
	return false
}

// Dealership describes a dealer account.
type Dealership struct {
	Name           string         `json:"name"`
	Address        string         `json:"address,omitempty"`
	ContactNumbers []string       `json:"contact_numbers,omitempty"`
	BannerImage    string         `json:"banner_image,omitempty"`
	OpeningHours   []OpeningHours `json:"opening_hours,omitempty"`
}

// OpeningHours covers one group of days, e.g. "Mon-Fri" 08:00-17:00.
type OpeningHours struct {
	Days   string `json:"days"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}
