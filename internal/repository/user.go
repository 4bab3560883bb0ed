package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	userColumns = `id, email, password, roles, created_at`

	createUserSQL = `INSERT INTO users (email, password, roles, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	updatePasswordSQL = `UPDATE users SET password = $2 WHERE id = $1`

	updateRolesSQL = `UPDATE users SET roles = $2 WHERE id = $1`

	countUsersSQL = `SELECT count(*) FROM users`

	listUsersSQL = `SELECT ` + userColumns + ` FROM users ORDER BY id DESC LIMIT $1 OFFSET $2`

	getProfileSQL = `SELECT user_id, first_name, surname, phone, country_prefix_code,
		primary_address, secondary_address, city, state, postal_code, country
		FROM customer_profiles WHERE user_id = $1`

	saveProfileSQL = `INSERT INTO customer_profiles
		(user_id, first_name, surname, phone, country_prefix_code,
		 primary_address, secondary_address, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			surname = EXCLUDED.surname,
			phone = EXCLUDED.phone,
			country_prefix_code = EXCLUDED.country_prefix_code,
			primary_address = EXCLUDED.primary_address,
			secondary_address = EXCLUDED.secondary_address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country`

	createResetTokenSQL = `INSERT INTO password_reset_tokens (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`

	findResetTokenSQL = `SELECT token, user_id, created_at, expires_at
		FROM password_reset_tokens WHERE token = $1`

	deleteResetTokensSQL = `DELETE FROM password_reset_tokens WHERE user_id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u and fills its ID.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL,
		u.Email, u.PasswordHash, user.RoleStrings(u.Roles), u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, updatePasswordSQL, id, hash)
}

// UpdateRoles replaces the user's roles.
func (r *UserRepository) UpdateRoles(ctx context.Context, id int64, roles []user.Role) error {
	return r.execOne(ctx, updateRolesSQL, id, user.RoleStrings(roles))
}

func (r *UserRepository) execOne(ctx context.Context, query string, id int64, arg any) error {
	tag, err := r.pool.Exec(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// List returns one page of users, newest first.
func (r *UserRepository) List(ctx context.Context, p paging.Page) ([]user.User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countUsersSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}
	rows, err := r.pool.Query(ctx, listUsersSQL, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	return users, total, nil
}

// Latest returns the n most recently registered users.
func (r *UserRepository) Latest(ctx context.Context, n int) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL, n, 0)
	if err != nil {
		return nil, fmt.Errorf("listing latest users: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

// Profile returns the stored customer profile.
func (r *UserRepository) Profile(ctx context.Context, userID int64) (*user.Profile, error) {
	var p user.Profile
	err := r.pool.QueryRow(ctx, getProfileSQL, userID).Scan(
		&p.UserID, &p.FirstName, &p.Surname, &p.Phone, &p.CountryPrefixCode,
		&p.PrimaryAddress, &p.SecondaryAddress, &p.City, &p.State, &p.PostalCode, &p.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting profile of user %d: %w", userID, err)
	}
	return &p, nil
}

// SaveProfile inserts or replaces the customer profile.
func (r *UserRepository) SaveProfile(ctx context.Context, p *user.Profile) error {
	_, err := r.pool.Exec(ctx, saveProfileSQL,
		p.UserID, p.FirstName, p.Surname, p.Phone, p.CountryPrefixCode,
		p.PrimaryAddress, p.SecondaryAddress, p.City, p.State, p.PostalCode, p.Country,
	)
	if err != nil {
		return fmt.Errorf("saving profile of user %d: %w", p.UserID, err)
	}
	return nil
}

// CreateResetToken stores a password reset token.
func (r *UserRepository) CreateResetToken(ctx context.Context, t *user.ResetToken) error {
	if _, err := r.pool.Exec(ctx, createResetTokenSQL, t.Token, t.UserID, t.CreatedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("creating reset token: %w", err)
	}
	return nil
}

// FindResetToken returns a stored token regardless of expiry.
func (r *UserRepository) FindResetToken(ctx context.Context, token string) (*user.ResetToken, error) {
	var t user.ResetToken
	err := r.pool.QueryRow(ctx, findResetTokenSQL, token).Scan(&t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding reset token: %w", err)
	}
	return &t, nil
}

// DeleteResetTokens removes every reset token of the user.
func (r *UserRepository) DeleteResetTokens(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, deleteResetTokensSQL, userID); err != nil {
		return fmt.Errorf("deleting reset tokens of user %d: %w", userID, err)
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u     user.User
		roles []string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &roles, &u.CreatedAt)
	for _, r := range roles {
		u.Roles = append(u.Roles, user.Role(r))
	}
	return u, err
}
