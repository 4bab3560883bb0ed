package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/user"
)

// formPage describes an account form: its name, fields and the error code of
// the previous attempt.
func formPage(name string, fields ...string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		q := r.URL.Query()
		view(w, func(e *jx.Encoder) {
			strField(e, "form", name)
			e.Field("fields", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range fields {
						e.Str(f)
					}
				})
			})
			strField(e, "error", q.Get("error"))
			if next := q.Get("next"); next != "" {
				strField(e, "next", safeNext(next, "/catalog"))
			}
		})
		return nil
	}
}

// startSession signs u in on the response.
func (h *Handler) startSession(w http.ResponseWriter, u *user.User) error {
	token, expires, err := h.sessions.Issue(u)
	if err != nil {
		return err
	}
	h.sessions.SetCookie(w, token, expires)
	return nil
}

func checkConfirmation(f map[string][]string, password string) error {
	confirm, ok := f["confirmPassword"]
	if ok && (len(confirm) == 0 || confirm[0] != password) {
		return invalid("confirmPassword", "passwords do not match")
	}
	return nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	password := r.PostForm.Get("password")
	if err := checkConfirmation(r.PostForm, password); err != nil {
		return err
	}
	u, err := h.users.Register(r.Context(), r.PostForm.Get("email"), password)
	if err != nil {
		return err
	}
	h.observer.UserRegistered(r.Context(), u)
	if err := h.startSession(w, u); err != nil {
		return err
	}
	redirect(w, r, "/catalog")
	return nil
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	u, err := h.users.Authenticate(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		return err
	}
	if err := h.startSession(w, u); err != nil {
		return err
	}
	next := r.PostForm.Get("next")
	if next == "" {
		next = r.URL.Query().Get("next")
	}
	redirect(w, r, safeNext(next, "/catalog"))
	return nil
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) error {
	if u := currentUser(r.Context()); u != nil {
		h.lg.Security.Info("User logged out", zap.Int64("user_id", u.ID))
	}
	h.sessions.ClearCookie(w)
	redirect(w, r, "/catalog")
	return nil
}

// forgotPassword always reports success so the form cannot be used to probe
// for registered emails.
func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	if email == "" {
		return invalid("email", "must not be blank")
	}
	if err := h.users.RequestPasswordReset(r.Context(), email); err != nil {
		return err
	}
	redirect(w, r, "/login?reset=requested")
	return nil
}

func (h *Handler) resetPasswordPage(w http.ResponseWriter, r *http.Request) error {
	t, err := h.users.CheckResetToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		strField(e, "form", "reset-password")
		strField(e, "token", t.Token)
		e.Field("expiresAt", func(e *jx.Encoder) { timestamp(e, t.ExpiresAt) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	password := r.PostForm.Get("password")
	if err := checkConfirmation(r.PostForm, password); err != nil {
		return err
	}
	if err := h.users.ResetPassword(r.Context(), mux.Vars(r)["token"], password); err != nil {
		return err
	}
	redirect(w, r, "/login?reset=done")
	return nil
}

func resetFallback(r *http.Request) string {
	return "/reset-password/" + mux.Vars(r)["token"]
}

func (h *Handler) profilePage(w http.ResponseWriter, r *http.Request) error {
	u := currentUser(r.Context())
	p, err := h.users.Profile(r.Context(), u.ID)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("user", func(e *jx.Encoder) { encodeUser(e, u) })
		e.Field("profile", func(e *jx.Encoder) { encodeProfile(e, p) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	f := r.PostForm
	p := &user.Profile{
		UserID:            currentUser(r.Context()).ID,
		FirstName:         f.Get("firstName"),
		Surname:           f.Get("surname"),
		Phone:             f.Get("phone"),
		CountryPrefixCode: f.Get("countryPrefixCode"),
		PrimaryAddress:    f.Get("primaryAddress"),
		SecondaryAddress:  f.Get("secondaryAddress"),
		City:              f.Get("city"),
		State:             f.Get("state"),
		PostalCode:        f.Get("postalCode"),
		Country:           f.Get("country"),
	}
	if err := h.users.SaveProfile(r.Context(), p); err != nil {
		return err
	}
	redirect(w, r, "/profile")
	return nil
}
