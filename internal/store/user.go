package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/motorlot/apiserver/types"
)

// profile is the JSONB part of a user row.
type profile struct {
	Name       string            `json:"name,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Dealership *types.Dealership `json:"dealership,omitempty"`
}

const userColumns = `id, email, username, role, password_hash, favorites, profile, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user     types.User
		username sql.NullString
		favs     pq.StringArray
		doc      []byte
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&username,
		&user.Role,
		&user.PasswordHash,
		&favs,
		&doc,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}

	var p profile
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &p); err != nil {
			return types.User{}, err
		}
	}
	user.Username = username.String
	user.Favorites = []string(favs)
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	user.Name = p.Name
	user.Phone = p.Phone
	user.Dealership = p.Dealership
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks a user up by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

// GetByUsername looks a user up by username, ignoring case.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(username)))
}

// List returns all users, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
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

	doc, err := json.Marshal(profileOf(user))
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (id, email, username, role, password_hash, favorites, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		nullString(user.Username),
		user.Role,
		user.PasswordHash,
		pq.Array(user.Favorites),
		doc,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// Update overwrites the user's email, username, role, password hash and
// profile. Favorites are changed through AddFavorite and RemoveFavorite.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = r.now().UTC()

	doc, err := json.Marshal(profileOf(user))
	if err != nil {
		return types.User{}, err
	}

	const query = `
		UPDATE users
		SET email = $1,
			username = $2,
			role = $3,
			password_hash = $4,
			profile = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		nullString(user.Username),
		user.Role,
		user.PasswordHash,
		doc,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// AddFavorite adds listingID to the user's favorites. Adding an existing
// favorite is a no-op.
func (r *UserRepository) AddFavorite(ctx context.Context, userID, listingID string) ([]string, error) {
	const query = `
		UPDATE users
		SET favorites = CASE
				WHEN $2 = ANY(favorites) THEN favorites
				ELSE array_append(favorites, $2)
			END,
			updated_at = $3
		WHERE id = $1
		RETURNING favorites`
	return r.updateFavorites(ctx, query, userID, listingID)
}

// RemoveFavorite removes listingID from the user's favorites.
func (r *UserRepository) RemoveFavorite(ctx context.Context, userID, listingID string) ([]string, error) {
	const query = `
		UPDATE users
		SET favorites = array_remove(favorites, $2),
			updated_at = $3
		WHERE id = $1
		RETURNING favorites`
	return r.updateFavorites(ctx, query, userID, listingID)
}

func (r *UserRepository) updateFavorites(ctx context.Context, query, userID, listingID string) ([]string, error) {
	var favs pq.StringArray
	err := r.db.QueryRowContext(ctx, query, userID, listingID, r.now().UTC()).Scan(&favs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if favs == nil {
		return []string{}, nil
	}
	return []string(favs), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
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

func profileOf(user types.User) profile {
	return profile{Name: user.Name, Phone: user.Phone, Dealership: user.Dealership}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
