package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// catalogPage lists active products matching the query filters along with
// the categories for the filter form.
func (h *Handler) catalogPage(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	search, err := parseSearch(q)
	if err != nil {
		return err
	}
	search.ActiveOnly = true
	p := pageParam(q, "", h.catalogPageSize, h.catalogPageSize)

	var (
		products   []catalog.Product
		total      int
		categories []catalog.Category
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		products, total, err = h.catalog.Search(ctx, search, p)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = h.catalog.Categories(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	view(w, func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) { encodeProducts(e, products) })
		encodePagination(e, p, total)
		e.Field("categories", func(e *jx.Encoder) { encodeCategories(e, categories) })
	})
	return nil
}

// productPage shows an active product. Requests with a stale or missing slug
// are redirected to the canonical URL.
func (h *Handler) productPage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return catalog.ErrProductNotFound
	}
	p, err := h.catalog.VisibleProduct(r.Context(), id)
	if err != nil {
		return err
	}
	if mux.Vars(r)["slug"] != p.Slug {
		http.Redirect(w, r, productURL(p), http.StatusMovedPermanently)
		return nil
	}
	view(w, func(e *jx.Encoder) {
		e.Field("product", func(e *jx.Encoder) { encodeProduct(e, p) })
	})
	return nil
}

func productURL(p *catalog.Product) string {
	return "/product/" + strconv.FormatInt(p.ID, 10) + "/" + p.Slug
}

// productFallback returns to the product page after a rejected cart add.
func productFallback(r *http.Request) string {
	return "/product/" + mux.Vars(r)["id"]
}
