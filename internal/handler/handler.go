// Package handler serves the storefront, the back office and the JSON API
// over gorilla/mux.
package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/logging"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Observer receives business events, e.g. to count them.
type Observer interface {
	OrderPlaced(ctx context.Context, o *order.Order)
	UserRegistered(ctx context.Context, u *user.User)
}

type nopObserver struct{}

func (nopObserver) OrderPlaced(context.Context, *order.Order)  {}
func (nopObserver) UserRegistered(context.Context, *user.User) {}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// CatalogPageSize is the number of products per storefront catalog page.
	CatalogPageSize int
	// AdminPageSize is the number of rows per back-office listing page.
	AdminPageSize int
	// Observer is notified about placed orders and registrations.
	Observer Observer
}

// Services bundles the domain services the handlers delegate to.
type Services struct {
	Catalog *catalog.Service
	Carts   *cart.Service
	Orders  *order.Service
	Users   *user.Service
}

// Handler implements every HTTP route of the storefront.
type Handler struct {
	catalog  *catalog.Service
	carts    *cart.Service
	orders   *order.Service
	users    *user.Service
	sessions *Sessions
	observer Observer
	lg       logging.Loggers

	catalogPageSize int
	adminPageSize   int
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, svc Services, sessions *Sessions, lg logging.Loggers) *Handler {
	h := &Handler{
		catalog:         svc.Catalog,
		carts:           svc.Carts,
		orders:          svc.Orders,
		users:           svc.Users,
		sessions:        sessions,
		observer:        cfg.Observer,
		lg:              lg,
		catalogPageSize: cfg.CatalogPageSize,
		adminPageSize:   cfg.AdminPageSize,
	}
	if h.observer == nil {
		h.observer = nopObserver{}
	}
	if h.catalogPageSize <= 0 {
		h.catalogPageSize = 12
	}
	if h.adminPageSize <= 0 {
		h.adminPageSize = 20
	}
	return h
}

// handlerFunc is an http.HandlerFunc that reports failures instead of
// writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// page serves a storefront view. Known domain errors render as a JSON error
// view with their status code.
func (h *Handler) page(lg *zap.Logger, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if f, ok := classify(err); ok {
			writeJSON(w, f.status, func(e *jx.Encoder) { encodeFailure(e, f) })
			return
		}
		h.fail(w, r, lg, err)
	})
}

// action serves a storefront form post. fn redirects on success; a known
// domain error sends the browser back to fallback with ?error=<code>.
func (h *Handler) action(lg *zap.Logger, fallback func(*http.Request) string, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		f, ok := classify(err)
		if !ok {
			h.fail(w, r, lg, err)
			return
		}
		target := fallback(r)
		if errors.Is(err, cart.ErrEmptyCart) || errors.Is(err, order.ErrMissingAddress) {
			target = "/cart"
		}
		lg.Debug("Action rejected",
			zap.String("route", httpmiddleware.RouteTemplate(r)),
			zap.String("code", f.code),
			zap.Error(err),
		)
		redirect(w, r, withQuery(target, "error", f.code))
	})
}

// api serves a JSON API route with the {"status","message","data"} envelope.
func (h *Handler) api(lg *zap.Logger, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if f, ok := classify(err); ok {
			writeEnvelope(w, f.status, f.message, nil)
			return
		}
		h.log(r, lg, err)
		writeEnvelope(w, http.StatusInternalServerError, "An unexpected error occurred", nil)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, lg *zap.Logger, err error) {
	h.log(r, lg, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) log(r *http.Request, lg *zap.Logger, err error) {
	lg.Error("Request failed",
		zap.String("method", r.Method),
		zap.String("route", httpmiddleware.RouteTemplate(r)),
		zap.String("request_id", httpmiddleware.RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
}

// to returns a fallback that always points at path.
func to(path string) func(*http.Request) string {
	return func(*http.Request) string { return path }
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// Register installs all routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.Use(h.authenticate)

	// Catalog.
	r.Handle("/", http.RedirectHandler("/catalog", http.StatusFound)).Methods(http.MethodGet)
	r.Handle("/catalog", h.page(h.lg.Analytics, h.catalogPage)).Methods(http.MethodGet)
	r.Handle("/product/{id:[0-9]+}", h.page(h.lg.Analytics, h.productPage)).Methods(http.MethodGet)
	r.Handle("/product/{id:[0-9]+}/{slug}", h.page(h.lg.Analytics, h.productPage)).Methods(http.MethodGet)

	// Cart and checkout.
	r.Handle("/cart", h.requireUser(h.page(h.lg.Cart, h.cartPage))).Methods(http.MethodGet)
	r.Handle("/cart/add/{id:[0-9]+}", h.requireUser(h.action(h.lg.Cart, productFallback, h.addToCart))).
		Methods(http.MethodPost)
	r.Handle("/cart/update/{id:[0-9]+}/{quantity:-?[0-9]+}", h.requireUser(h.action(h.lg.Cart, to("/cart"), h.updateCartItem))).
		Methods(http.MethodPost)
	r.Handle("/cart/remove/{id:[0-9]+}", h.requireUser(h.action(h.lg.Cart, to("/cart"), h.removeFromCart))).
		Methods(http.MethodPost)
	r.Handle("/checkout/address", h.requireUser(h.page(h.lg.Order, h.addressPage))).Methods(http.MethodGet)
	r.Handle("/checkout/address", h.requireUser(h.action(h.lg.Order, to("/checkout/address"), h.saveAddress))).
		Methods(http.MethodPost)
	r.Handle("/checkout/summary", h.requireUser(h.page(h.lg.Order, h.checkoutPage("summary")))).Methods(http.MethodGet)
	r.Handle("/checkout/confirm", h.requireUser(h.page(h.lg.Order, h.checkoutPage("confirm")))).Methods(http.MethodGet)
	r.Handle("/checkout/confirm", h.requireUser(h.action(h.lg.Order, to("/cart"), h.confirmCheckout))).
		Methods(http.MethodPost)

	// Customer orders.
	r.Handle("/orders", h.requireUser(h.page(h.lg.Order, h.ordersPage))).Methods(http.MethodGet)
	r.Handle("/orders/{id}", h.requireUser(h.page(h.lg.Order, h.orderPage))).Methods(http.MethodGet)

	// Accounts.
	r.Handle("/register", h.page(h.lg.Security, formPage("register", "email", "password", "confirmPassword"))).
		Methods(http.MethodGet)
	r.Handle("/register", h.action(h.lg.Security, to("/register"), h.register)).Methods(http.MethodPost)
	r.Handle("/login", h.page(h.lg.Security, formPage("login", "email", "password"))).Methods(http.MethodGet)
	r.Handle("/login", h.action(h.lg.Security, to("/login"), h.login)).Methods(http.MethodPost)
	r.Handle("/logout", h.action(h.lg.Security, to("/catalog"), h.logout)).Methods(http.MethodPost)
	r.Handle("/forgot-password", h.page(h.lg.Security, formPage("forgot-password", "email"))).
		Methods(http.MethodGet)
	r.Handle("/forgot-password", h.action(h.lg.Security, to("/forgot-password"), h.forgotPassword)).
		Methods(http.MethodPost)
	r.Handle("/reset-password/{token}", h.page(h.lg.Security, h.resetPasswordPage)).Methods(http.MethodGet)
	r.Handle("/reset-password/{token}", h.action(h.lg.Security, resetFallback, h.resetPassword)).
		Methods(http.MethodPost)
	r.Handle("/profile", h.requireUser(h.page(h.lg.Security, h.profilePage))).Methods(http.MethodGet)
	r.Handle("/profile", h.requireUser(h.action(h.lg.Security, to("/profile"), h.saveProfile))).
		Methods(http.MethodPost)

	h.registerAdmin(r.PathPrefix("/admin").Subrouter())
	h.registerAPI(r.PathPrefix("/api").Subrouter())
}

func (h *Handler) registerAdmin(r *mux.Router) {
	r.Use(h.requireUser, h.requireAdmin)

	r.Handle("", h.page(h.lg.Analytics, h.dashboardPage)).Methods(http.MethodGet)
	r.Handle("/users", h.page(h.lg.Security, h.usersPage)).Methods(http.MethodGet)
	r.Handle("/users/{id:[0-9]+}/roles", h.action(h.lg.Security, to("/admin/users"), h.updateRoles)).
		Methods(http.MethodPost)

	r.Handle("/orders", h.page(h.lg.Order, h.adminOrdersPage)).Methods(http.MethodGet)
	r.Handle("/orders/{id}", h.page(h.lg.Order, h.adminOrderPage)).Methods(http.MethodGet)
	r.Handle("/orders/{id}/status", h.action(h.lg.Order, adminOrderFallback, h.changeOrderStatus)).
		Methods(http.MethodPost)

	r.Handle("/products", h.page(h.lg.Stock, h.adminProductsPage)).Methods(http.MethodGet)
	r.Handle("/products", h.action(h.lg.Stock, to("/admin/products"), h.createProduct)).Methods(http.MethodPost)
	r.Handle("/products/{id:[0-9]+}", h.page(h.lg.Stock, h.adminProductPage)).Methods(http.MethodGet)
	r.Handle("/products/{id:[0-9]+}", h.action(h.lg.Stock, adminProductFallback, h.updateProduct)).
		Methods(http.MethodPost)
	r.Handle("/products/{id:[0-9]+}/delete", h.action(h.lg.Stock, to("/admin/products"), h.deleteProduct)).
		Methods(http.MethodPost)

	r.Handle("/categories", h.page(h.lg.Analytics, h.adminCategoriesPage)).Methods(http.MethodGet)
	r.Handle("/categories", h.action(h.lg.Analytics, to("/admin/categories"), h.createCategory)).
		Methods(http.MethodPost)
	r.Handle("/categories/{id:[0-9]+}", h.page(h.lg.Analytics, h.adminCategoryPage)).Methods(http.MethodGet)
	r.Handle("/categories/{id:[0-9]+}", h.action(h.lg.Analytics, adminCategoryFallback, h.updateCategory)).
		Methods(http.MethodPost)
	r.Handle("/categories/{id:[0-9]+}/delete", h.action(h.lg.Analytics, to("/admin/categories"), h.deleteCategory)).
		Methods(http.MethodPost)
}

func (h *Handler) registerAPI(r *mux.Router) {
	r.Handle("/products", h.api(h.lg.Analytics, h.apiListProducts)).Methods(http.MethodGet)
	r.Handle("/products/search", h.api(h.lg.Analytics, h.apiSearchProducts)).Methods(http.MethodGet)
	r.Handle("/products/{id:[0-9]+}", h.api(h.lg.Analytics, h.apiGetProduct)).Methods(http.MethodGet)
}
