package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/user"
)

// SessionConfig configures session tokens and their cookie.
type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Claims is the JWT payload of a session.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

// NewSessions returns Sessions for cfg. The secret must not be empty.
func NewSessions(cfg SessionConfig) (*Sessions, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "storefront_session"
	}
	return &Sessions{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		cookie: cfg.CookieName,
		secure: cfg.Secure,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for u.
func (s *Sessions) Issue(u *user.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: u.Email,
		Roles: user.RoleStrings(u.Roles),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session")
	}
	return signed, expires, nil
}

// Parse verifies token and returns the user id it was issued for.
func (s *Sessions) Parse(token string) (int64, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "parse session")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "session subject")
	}
	return id, nil
}

// Token returns the session token carried by r: the session cookie, else a
// bearer Authorization header.
func (s *Sessions) Token(r *http.Request) string {
	if c, err := r.Cookie(s.cookie); err == nil && c.Value != "" {
		return c.Value
	}
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// SetCookie stores token in the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type userKey struct{}

func withUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// currentUser returns the signed-in user or nil.
func currentUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(userKey{}).(*user.User)
	return u
}

// authenticate resolves the session token to a user. The user is reloaded on
// every request so role changes and deletions apply immediately.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.sessions.Token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.sessions.Parse(token)
		if err != nil {
			h.lg.Security.Debug("Rejected session token", zap.Error(err))
			h.sessions.ClearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		u, err := h.users.Get(r.Context(), id)
		switch {
		case errors.Is(err, user.ErrNotFound):
			h.sessions.ClearCookie(w)
		case err != nil:
			h.lg.Security.Error("Load session user", zap.Int64("user_id", id), zap.Error(err))
		default:
			r = r.WithContext(withUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser redirects anonymous visitors to the login page.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r.Context()) == nil {
			redirect(w, r, withQuery("/login", "next", r.URL.RequestURI()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin answers 403 to users without ROLE_ADMIN. It must run after
// requireUser.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		if u == nil || !u.IsAdmin() {
			h.lg.Security.Warn("Back office access denied",
				zap.String("path", r.URL.Path),
				zap.Int64p("user_id", userID(u)),
			)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(u *user.User) *int64 {
	if u == nil {
		return nil
	}
	return &u.ID
}
