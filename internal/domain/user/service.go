package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/validate"
	"github.com/xenking/storefront/internal/logging"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// ResetTokenTTL is how long a reset link stays valid.
	ResetTokenTTL = time.Hour
)

// Service implements registration, authentication and account management.
type Service struct {
	users  Repository
	mailer ResetMailer
	cost   int
	lg     logging.Loggers
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a user Service.
func NewService(users Repository, mailer ResetMailer, lg logging.Loggers, opts ...Option) *Service {
	s := &Service{
		users:  users,
		mailer: mailer,
		cost:   bcrypt.DefaultCost,
		lg:     lg,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if err := validate.Required("email", email); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &validate.Error{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &validate.Error{Field: "password", Message: "must be at least 8 characters"}
	}
	return nil
}

// Register creates a customer account holding RoleUser.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if err := validate.First(validateEmail(email), validatePassword(password)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []Role{RoleUser},
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create user")
	}

	s.lg.Security.Info("User registered", zap.Int64("user_id", u.ID))
	return u, nil
}

// Authenticate checks email and password, returning ErrInvalidCredentials
// for an unknown email or a wrong password alike.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.lg.Security.Warn("Login failed", zap.String("reason", "unknown email"))
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.lg.Security.Warn("Login failed",
			zap.String("reason", "wrong password"),
			zap.Int64("user_id", u.ID),
		)
		return nil, ErrInvalidCredentials
	}

	s.lg.Security.Info("User logged in", zap.Int64("user_id", u.ID))
	return u, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// RequestPasswordReset issues a reset token and mails it. Unknown emails
// succeed silently so the response does not reveal which accounts exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.lg.Security.Info("Password reset for unknown email")
			return nil
		}
		return errors.Wrap(err, "find user")
	}

	token, err := newToken()
	if err != nil {
		return errors.Wrap(err, "generate reset token")
	}
	now := s.now()
	t := &ResetToken{
		Token:     token,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ResetTokenTTL),
	}
	if err := s.users.CreateResetToken(ctx, t); err != nil {
		return errors.Wrap(err, "store reset token")
	}
	s.lg.Security.Info("Password reset requested", zap.Int64("user_id", u.ID))

	if err := s.mailer.PasswordReset(ctx, u, t); err != nil {
		s.lg.Security.Error("Password reset email failed",
			zap.Int64("user_id", u.ID),
			zap.Error(err),
		)
	}
	return nil
}

// CheckResetToken returns the token when it exists and has not expired.
func (s *Service) CheckResetToken(ctx context.Context, token string) (*ResetToken, error) {
	t, err := s.users.FindResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, errors.Wrap(err, "find reset token")
	}
	if t.Expired(s.now()) {
		return nil, ErrInvalidResetToken
	}
	return t, nil
}

// ResetPassword sets a new password and invalidates all of the user's tokens.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	t, err := s.CheckResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, t.UserID, string(hash)); err != nil {
		return errors.Wrap(err, "update password")
	}
	if err := s.users.DeleteResetTokens(ctx, t.UserID); err != nil {
		return errors.Wrap(err, "delete reset tokens")
	}

	s.lg.Security.Info("Password reset completed", zap.Int64("user_id", t.UserID))
	return nil
}

// UpdateRoles replaces the roles of a user. RoleUser is always kept.
func (s *Service) UpdateRoles(ctx context.Context, id int64, roles []Role, adminID int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := []Role{RoleUser}
	for _, r := range roles {
		if r != RoleUser && r != RoleAdmin {
			return nil, errors.Wrapf(ErrUnknownRole, "%q", r)
		}
		if !slices.Contains(next, r) {
			next = append(next, r)
		}
	}
	if err := s.users.UpdateRoles(ctx, id, next); err != nil {
		return nil, errors.Wrapf(err, "update roles of user %d", id)
	}

	s.lg.Security.Info("User roles changed",
		zap.Int64("user_id", id),
		zap.Int64("admin_id", adminID),
		zap.Strings("roles", RoleStrings(next)),
	)
	u.Roles = next
	return u, nil
}

// Profile returns the user's profile, or an empty one when none is stored.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	p, err := s.users.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Profile{UserID: userID}, nil
		}
		return nil, err
	}
	return p, nil
}

// SaveProfile stores the profile of p.UserID.
func (s *Service) SaveProfile(ctx context.Context, p *Profile) error {
	for _, field := range []*string{
		&p.FirstName, &p.Surname, &p.Phone, &p.CountryPrefixCode,
		&p.PrimaryAddress, &p.SecondaryAddress, &p.City, &p.State,
		&p.PostalCode, &p.Country,
	} {
		*field = strings.TrimSpace(*field)
	}
	if err := s.users.SaveProfile(ctx, p); err != nil {
		return errors.Wrapf(err, "save profile of user %d", p.UserID)
	}
	return nil
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, p paging.Page) ([]User, int, error) {
	return s.users.List(ctx, p)
}

// Latest returns the n most recently registered users.
func (s *Service) Latest(ctx context.Context, n int) ([]User, error) {
	return s.users.Latest(ctx, n)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

