package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "storefront_session" {
			return c
		}
	}
	t.Fatalf("no session cookie in %v", w.Header().Values("Set-Cookie"))
	return nil
}

func (e *testEnv) doWithCookie(method, target string, c *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(c)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"email":           {"Jane@Example.com"},
		"password":        {"password123"},
		"confirmPassword": {"password123"},
	}
	w := env.do(http.MethodPost, "/register", form, nil)
	requireRedirect(t, w, "/catalog")
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 1, env.observer.users)

	profile := env.doWithCookie(http.MethodGet, "/profile", cookie)
	require.Equal(t, http.StatusOK, profile.Code)
	assert.Equal(t, "jane@example.com", decode(t, profile)["user"].(map[string]any)["email"])

	tests := []struct {
		name string
		form url.Values
		code string
	}{
		{
			name: "duplicate email",
			form: form,
			code: "email_taken",
		},
		{
			name: "password mismatch",
			form: url.Values{"email": {"john@example.com"}, "password": {"password123"}, "confirmPassword": {"password124"}},
			code: "invalid_confirmPassword",
		},
		{
			name: "short password",
			form: url.Values{"email": {"john@example.com"}, "password": {"short"}},
			code: "invalid_password",
		},
		{
			name: "malformed email",
			form: url.Values{"email": {"not-an-email"}, "password": {"password123"}},
			code: "invalid_email",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/register", tt.form, nil)
			requireRedirect(t, w, "/register?error="+tt.code)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.customer("jane@example.com")

	tests := []struct {
		name     string
		form     url.Values
		location string
		session  bool
	}{
		{
			name:     "default target",
			form:     url.Values{"email": {"jane@example.com"}, "password": {"password123"}},
			location: "/catalog",
			session:  true,
		},
		{
			name:     "next target",
			form:     url.Values{"email": {"JANE@example.com "}, "password": {"password123"}, "next": {"/orders"}},
			location: "/orders",
			session:  true,
		},
		{
			name:     "external next ignored",
			form:     url.Values{"email": {"jane@example.com"}, "password": {"password123"}, "next": {"//evil.example"}},
			location: "/catalog",
			session:  true,
		},
		{
			name:     "wrong password",
			form:     url.Values{"email": {"jane@example.com"}, "password": {"wrong-password"}},
			location: "/login?error=invalid_credentials",
		},
		{
			name:     "unknown email",
			form:     url.Values{"email": {"nobody@example.com"}, "password": {"password123"}},
			location: "/login?error=invalid_credentials",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/login", tt.form, nil)
			requireRedirect(t, w, tt.location)
			if tt.session {
				sessionCookie(t, w)
			} else {
				assert.Empty(t, w.Result().Cookies())
			}
		})
	}
}

func TestLoginPage_CarriesNext(t *testing.T) {
	env := newTestEnv(t)

	body := decode(t, env.do(http.MethodGet, "/login?next=%2Fcart&error=invalid_credentials", nil, nil))
	assert.Equal(t, "login", body["form"])
	assert.Equal(t, "/cart", body["next"])
	assert.Equal(t, "invalid_credentials", body["error"])
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	u := env.customer("jane@example.com")

	w := env.do(http.MethodPost, "/logout", url.Values{}, u)
	requireRedirect(t, w, "/catalog")
	cookie := sessionCookie(t, w)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestAuthenticate_BadCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.doWithCookie(http.MethodGet, "/profile", &http.Cookie{Name: "storefront_session", Value: "garbage"})
	requireRedirect(t, w, "/login?next=%2Fprofile")
	assert.Equal(t, -1, sessionCookie(t, w).MaxAge)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	u := env.customer("jane@example.com")

	requireRedirect(t, env.do(http.MethodPost, "/forgot-password", url.Values{"email": {""}}, nil),
		"/forgot-password?error=invalid_email")
	requireRedirect(t, env.do(http.MethodPost, "/forgot-password", url.Values{"email": {"nobody@example.com"}}, nil),
		"/login?reset=requested")
	assert.Empty(t, env.mailer.resets)

	requireRedirect(t, env.do(http.MethodPost, "/forgot-password", url.Values{"email": {"jane@example.com"}}, nil),
		"/login?reset=requested")
	require.Len(t, env.mailer.resets, 1)
	token := env.mailer.resets[0].Token
	assert.Equal(t, u.ID, env.mailer.resets[0].UserID)

	page := env.do(http.MethodGet, "/reset-password/"+token, nil, nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Equal(t, token, decode(t, page)["token"])

	mismatch := url.Values{"password": {"new-password"}, "confirmPassword": {"other-password"}}
	requireRedirect(t, env.do(http.MethodPost, "/reset-password/"+token, mismatch, nil),
		"/reset-password/"+token+"?error=invalid_confirmPassword")

	reset := url.Values{"password": {"new-password"}, "confirmPassword": {"new-password"}}
	requireRedirect(t, env.do(http.MethodPost, "/reset-password/"+token, reset, nil), "/login?reset=done")

	requireRedirect(t, env.do(http.MethodPost, "/login", url.Values{"email": {"jane@example.com"}, "password": {"password123"}}, nil),
		"/login?error=invalid_credentials")
	requireRedirect(t, env.do(http.MethodPost, "/login", url.Values{"email": {"jane@example.com"}, "password": {"new-password"}}, nil),
		"/catalog")

	// Tokens are single use.
	used := env.do(http.MethodGet, "/reset-password/"+token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, used.Code)
	assert.Equal(t, "invalid_reset_token", decode(t, used)["error"].(map[string]any)["code"])
	requireRedirect(t, env.do(http.MethodPost, "/reset-password/"+token, reset, nil),
		"/reset-password/"+token+"?error=invalid_reset_token")
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.customer("jane@example.com")
	p := env.product("Red Shoe", "10.00", 3, true)

	form := url.Values{
		"firstName":      {" Jane "},
		"surname":        {"Doe"},
		"primaryAddress": {"1 Main St"},
		"city":           {"Springfield"},
		"postalCode":     {"12345"},
		"country":        {"US"},
	}
	requireRedirect(t, env.do(http.MethodPost, "/profile", form, u), "/profile")

	profile := decode(t, env.do(http.MethodGet, "/profile", nil, u))["profile"].(map[string]any)
	assert.Equal(t, "Jane", profile["firstName"])
	assert.Equal(t, "Springfield", profile["city"])

	// The checkout address form starts from the profile.
	requireRedirect(t, env.do(http.MethodPost, "/cart/add/"+itoa(p.ID), url.Values{}, u), "/cart")
	address := decode(t, env.do(http.MethodGet, "/checkout/address", nil, u))["address"].(map[string]any)
	assert.Equal(t, "1 Main St", address["primaryAddress"])
	assert.Equal(t, "US", address["country"])
}
