package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	dashboardUsers  = 3
	dashboardOrders = 5
)

// dashboardPage shows the newest accounts and orders.
func (h *Handler) dashboardPage(w http.ResponseWriter, r *http.Request) error {
	var (
		users  []user.User
		orders []order.Order
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		users, err = h.users.Latest(ctx, dashboardUsers)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = h.orders.Latest(ctx, dashboardOrders)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	view(w, func(e *jx.Encoder) {
		e.Field("latestUsers", func(e *jx.Encoder) { encodeUsers(e, users) })
		e.Field("latestOrders", func(e *jx.Encoder) { encodeOrders(e, orders) })
	})
	return nil
}

func (h *Handler) usersPage(w http.ResponseWriter, r *http.Request) error {
	p := pageParam(r.URL.Query(), "", h.adminPageSize, h.adminPageSize)
	users, total, err := h.users.List(r.Context(), p)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("users", func(e *jx.Encoder) { encodeUsers(e, users) })
		encodePagination(e, p, total)
		e.Field("roles", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Str(string(user.RoleUser))
				e.Str(string(user.RoleAdmin))
			})
		})
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func (h *Handler) updateRoles(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	var roles []user.Role
	for _, v := range r.PostForm["roles"] {
		roles = append(roles, user.Role(v))
	}
	if _, err := h.users.UpdateRoles(r.Context(), id, roles, currentUser(r.Context()).ID); err != nil {
		return err
	}
	redirect(w, r, "/admin/users")
	return nil
}

func (h *Handler) adminOrdersPage(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	var f order.Filter
	if raw := q.Get("status"); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			return err
		}
		f.Status = status
	}
	if uid, err := optInt64(q, "userId"); err != nil {
		return err
	} else if uid != nil {
		f.UserID = *uid
	}
	p := pageParam(q, "", h.adminPageSize, h.adminPageSize)

	orders, total, err := h.orders.List(r.Context(), f, p)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) { encodeOrders(e, orders) })
		encodePagination(e, p, total)
		e.Field("statuses", func(e *jx.Encoder) { encodeStatuses(e, order.Statuses()) })
	})
	return nil
}

func (h *Handler) adminOrderPage(w http.ResponseWriter, r *http.Request) error {
	o, err := h.orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o, true) })
		e.Field("nextStatuses", func(e *jx.Encoder) { encodeStatuses(e, o.Status.Next()) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func (h *Handler) changeOrderStatus(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	next, err := order.ParseStatus(r.PostForm.Get("status"))
	if err != nil {
		return err
	}
	id := mux.Vars(r)["id"]
	if _, err := h.orders.ChangeStatus(r.Context(), id, next, currentUser(r.Context()).ID); err != nil {
		return err
	}
	redirect(w, r, "/admin/orders/"+id)
	return nil
}

func adminOrderFallback(r *http.Request) string {
	return "/admin/orders/" + mux.Vars(r)["id"]
}

// adminProductsPage lists every product, active or not, with the catalog
// filters.
func (h *Handler) adminProductsPage(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	search, err := parseSearch(q)
	if err != nil {
		return err
	}
	p := pageParam(q, "", h.adminPageSize, h.adminPageSize)
	products, total, err := h.catalog.Search(r.Context(), search, p)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) { encodeProducts(e, products) })
		encodePagination(e, p, total)
		strField(e, "error", q.Get("error"))
	})
	return nil
}

func (h *Handler) adminProductPage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	p, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		return err
	}
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("product", func(e *jx.Encoder) { encodeProduct(e, p) })
		e.Field("categories", func(e *jx.Encoder) { encodeCategories(e, categories) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) error {
	in, err := parseProductForm(r)
	if err != nil {
		return err
	}
	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		return err
	}
	redirect(w, r, adminProductURL(p.ID))
	return nil
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	in, err := parseProductForm(r)
	if err != nil {
		return err
	}
	if _, err := h.catalog.UpdateProduct(r.Context(), id, in); err != nil {
		return err
	}
	redirect(w, r, adminProductURL(id))
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		return err
	}
	redirect(w, r, "/admin/products")
	return nil
}

func adminProductURL(id int64) string {
	return "/admin/products/" + strconv.FormatInt(id, 10)
}

func adminProductFallback(r *http.Request) string {
	return "/admin/products/" + mux.Vars(r)["id"]
}

func (h *Handler) adminCategoriesPage(w http.ResponseWriter, r *http.Request) error {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("categories", func(e *jx.Encoder) { encodeCategories(e, categories) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func (h *Handler) adminCategoryPage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	c, err := h.catalog.Category(r.Context(), id)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("category", func(e *jx.Encoder) { encodeCategory(e, *c) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func parseCategoryForm(r *http.Request) (catalog.CategoryInput, error) {
	if err := r.ParseForm(); err != nil {
		return catalog.CategoryInput{}, invalid("form", "malformed body")
	}
	return catalog.CategoryInput{
		Name:        r.PostForm.Get("name"),
		Description: r.PostForm.Get("description"),
	}, nil
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) error {
	in, err := parseCategoryForm(r)
	if err != nil {
		return err
	}
	c, err := h.catalog.CreateCategory(r.Context(), in)
	if err != nil {
		return err
	}
	redirect(w, r, "/admin/categories/"+strconv.FormatInt(c.ID, 10))
	return nil
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	in, err := parseCategoryForm(r)
	if err != nil {
		return err
	}
	if _, err := h.catalog.UpdateCategory(r.Context(), id, in); err != nil {
		return err
	}
	redirect(w, r, "/admin/categories/"+strconv.FormatInt(id, 10))
	return nil
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		return err
	}
	redirect(w, r, "/admin/categories")
	return nil
}

func adminCategoryFallback(r *http.Request) string {
	return "/admin/categories/" + mux.Vars(r)["id"]
}
