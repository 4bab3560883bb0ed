// Package user models customer accounts, roles, profiles and password resets.
package user

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/paging"
)

// Role grants access to parts of the storefront.
type Role string

// Known roles. Every user holds RoleUser.
const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// Sentinel errors for account operations.
var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrUnknownRole        = errors.New("unknown role")
)

// RoleStrings converts roles to their stored form.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// User is a registered account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

// HasRole reports whether u holds r.
func (u *User) HasRole(r Role) bool {
	return slices.Contains(u.Roles, r)
}

// IsAdmin reports whether u may use the back office.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Profile holds optional customer details.
type Profile struct {
	UserID            int64
	FirstName         string
	Surname           string
	Phone             string
	CountryPrefixCode string
	PrimaryAddress    string
	SecondaryAddress  string
	City              string
	State             string
	PostalCode        string
	Country           string
}

// ResetToken is a single-use password reset credential.
type ResetToken struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Repository defines persistence operations for accounts.
type Repository interface {
	// Create stores u and assigns its ID, returning ErrEmailTaken for a
	// duplicate email.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateRoles(ctx context.Context, id int64, roles []Role) error
	List(ctx context.Context, p paging.Page) ([]User, int, error)
	Latest(ctx context.Context, n int) ([]User, error)

	// Profile returns ErrNotFound when the user never saved one.
	Profile(ctx context.Context, userID int64) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error

	CreateResetToken(ctx context.Context, t *ResetToken) error
	FindResetToken(ctx context.Context, token string) (*ResetToken, error)
	DeleteResetTokens(ctx context.Context, userID int64) error
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	PasswordReset(ctx context.Context, u *User, t *ResetToken) error
}
