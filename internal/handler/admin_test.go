package handler

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/user"
)

// placeOrder checks out one unit of a fresh product for u and returns the
// order ID.
func (e *testEnv) placeOrder(u *user.User, name string) string {
	e.t.Helper()
	p := e.product(name, "10.00", 5, true)
	requireRedirect(e.t, e.do(http.MethodPost, "/cart/add/"+itoa(p.ID), url.Values{}, u), "/cart")
	address := url.Values{"primaryAddress": {"1 Main St"}, "city": {"X"}, "postalCode": {"1"}, "country": {"US"}}
	requireRedirect(e.t, e.do(http.MethodPost, "/checkout/address", address, u), "/checkout/summary")
	w := e.do(http.MethodPost, "/checkout/confirm", url.Values{}, u)
	require.Equal(e.t, http.StatusSeeOther, w.Code)
	return strings.TrimPrefix(w.Header().Get("Location"), "/orders/")
}

func TestAdmin_Dashboard(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("admin@example.com")
	jane := env.customer("jane@example.com")
	env.placeOrder(jane, "Red Shoe")

	w := env.do(http.MethodGet, "/admin", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["latestUsers"], 2)
	orders := body["latestOrders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "jane@example.com", orders[0].(map[string]any)["email"])
}

func TestAdmin_OrderStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("admin@example.com")
	jane := env.customer("jane@example.com")
	id := env.placeOrder(jane, "Red Shoe")
	detail := "/admin/orders/" + id

	page := decode(t, env.do(http.MethodGet, detail, nil, admin))
	assert.Equal(t, []any{"processing", "cancelled"}, page["nextStatuses"])

	requireRedirect(t, env.do(http.MethodPost, detail+"/status", url.Values{"status": {"delivered"}}, admin),
		detail+"?error=invalid_transition")
	requireRedirect(t, env.do(http.MethodPost, detail+"/status", url.Values{"status": {"lost"}}, admin),
		detail+"?error=invalid_status")
	requireRedirect(t, env.do(http.MethodPost, detail+"/status", url.Values{"status": {"processing"}}, admin), detail)

	order := decode(t, env.do(http.MethodGet, "/orders/"+id, nil, jane))["order"].(map[string]any)
	assert.Equal(t, "processing", order["status"])

	requireRedirect(t, env.do(http.MethodPost, "/admin/orders/missing/status", url.Values{"status": {"processing"}}, admin),
		"/admin/orders/missing?error=order_not_found")
}

func TestAdmin_OrdersFilter(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("admin@example.com")
	jane := env.customer("jane@example.com")
	john := env.customer("john@example.com")
	first := env.placeOrder(jane, "Red Shoe")
	env.placeOrder(john, "Hat")
	requireRedirect(t, env.do(http.MethodPost, "/admin/orders/"+first+"/status", url.Values{"status": {"cancelled"}}, admin),
		"/admin/orders/"+first)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 2},
		{"by status", "?status=cancelled", 1},
		{"by user", "?userId=" + itoa(john.ID), 1},
		{"no match", "?status=shipped", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/admin/orders"+tt.query, nil, admin)
			require.Equal(t, http.StatusOK, w.Code)
			body := decode(t, w)
			assert.Equal(t, float64(tt.want), body["pagination"].(map[string]any)["total"])
		})
	}

	w := env.do(http.MethodGet, "/admin/orders?status=lost", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_Roles(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("admin@example.com")
	jane := env.customer("jane@example.com")

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/users", nil, jane).Code)

	requireRedirect(t, env.do(http.MethodPost, "/admin/users/"+itoa(jane.ID)+"/roles",
		url.Values{"roles": {"ROLE_ADMIN"}}, admin), "/admin/users")
	// Roles are reloaded per request, so the existing session gains access.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/admin/users", nil, jane).Code)

	requireRedirect(t, env.do(http.MethodPost, "/admin/users/"+itoa(jane.ID)+"/roles",
		url.Values{"roles": {"ROLE_ROOT"}}, admin), "/admin/users?error=unknown_role")

	requireRedirect(t, env.do(http.MethodPost, "/admin/users/"+itoa(jane.ID)+"/roles", url.Values{}, admin), "/admin/users")
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/users", nil, jane).Code)

	users := decode(t, env.do(http.MethodGet, "/admin/users", nil, admin))
	assert.Equal(t, float64(2), users["pagination"].(map[string]any)["total"])
}

func TestAdmin_Products(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("admin@example.com")

	w := env.do(http.MethodPost, "/admin/categories", url.Values{"name": {"Shoes"}}, admin)
	require.Equal(t, http.StatusSeeOther, w.Code)
	categoryID := strings.TrimPrefix(w.Header().Get("Location"), "/admin/categories/")

	form := url.Values{
		"name":       {"Red Shoe"},
		"sku":        {"SHOE-1"},
		"price":      {"19.99"},
		"stock":      {"4"},
		"categoryId": {categoryID},
	}
	w = env.do(http.MethodPost, "/admin/products", form, admin)
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/admin/products/"), location)

	product := decode(t, env.do(http.MethodGet, location, nil, admin))["product"].(map[string]any)
	assert.Equal(t, "red-shoe", product["slug"])
	assert.Equal(t, false, product["isActive"])
	assert.Equal(t, "Shoes", product["category"].(map[string]any)["name"])

	// Inactive products stay out of the storefront.
	assert.Equal(t, float64(0), decode(t, env.do(http.MethodGet, "/catalog", nil, nil))["pagination"].(map[string]any)["total"])

	form.Set("isActive", "on")
	form.Set("name", "Crimson Shoe")
	requireRedirect(t, env.do(http.MethodPost, location, form, admin), location)
	product = decode(t, env.do(http.MethodGet, location, nil, admin))["product"].(map[string]any)
	assert.Equal(t, "crimson-shoe", product["slug"])
	assert.Equal(t, float64(1), decode(t, env.do(http.MethodGet, "/catalog", nil, nil))["pagination"].(map[string]any)["total"])

	duplicate := url.Values{"name": {"Other"}, "sku": {"SHOE-1"}, "price": {"1"}}
	requireRedirect(t, env.do(http.MethodPost, "/admin/products", duplicate, admin), "/admin/products?error=duplicate_sku")
	requireRedirect(t, env.do(http.MethodPost, "/admin/products", url.Values{"name": {"Other"}, "sku": {"X"}}, admin),
		"/admin/products?error=invalid_price")
	requireRedirect(t, env.do(http.MethodPost, location, url.Values{"name": {"Red"}, "sku": {"SHOE-1"}, "price": {"-1"}}, admin),
		location+"?error=invalid_price")

	// Deleting the category keeps the product, uncategorised.
	requireRedirect(t, env.do(http.MethodPost, "/admin/categories/"+categoryID+"/delete", url.Values{}, admin), "/admin/categories")
	product = decode(t, env.do(http.MethodGet, location, nil, admin))["product"].(map[string]any)
	assert.Nil(t, product["category"])

	requireRedirect(t, env.do(http.MethodPost, location+"/delete", url.Values{}, admin), "/admin/products")
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, location, nil, admin).Code)
}

func TestAdmin_Categories(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("admin@example.com")

	w := env.do(http.MethodPost, "/admin/categories", url.Values{"name": {"Summer Hats"}, "description": {"Wide brims"}}, admin)
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")

	category := decode(t, env.do(http.MethodGet, location, nil, admin))["category"].(map[string]any)
	assert.Equal(t, "summer-hats", category["slug"])
	assert.Equal(t, "Wide brims", category["description"])

	requireRedirect(t, env.do(http.MethodPost, "/admin/categories", url.Values{"name": {" "}}, admin),
		"/admin/categories?error=invalid_name")
	requireRedirect(t, env.do(http.MethodPost, location, url.Values{"name": {"Winter Hats"}}, admin), location)

	list := decode(t, env.do(http.MethodGet, "/admin/categories", nil, admin))["categories"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "winter-hats", list[0].(map[string]any)["slug"])

	requireRedirect(t, env.do(http.MethodPost, "/admin/categories/999/delete", url.Values{}, admin),
		"/admin/categories?error=category_not_found")
}
