package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	apiDefaultLimit = 10
	apiMaxLimit     = 20
)

func (h *Handler) apiProducts(w http.ResponseWriter, r *http.Request, search catalog.Search) error {
	search.ActiveOnly = true
	p := pageParam(r.URL.Query(), "limit", apiDefaultLimit, apiMaxLimit)
	products, _, err := h.catalog.Search(r.Context(), search, p)
	if err != nil {
		return err
	}
	h.lg.Analytics.Info("API products listed",
		zap.Int("page", p.Number),
		zap.Int("limit", p.Size),
		zap.Int("count", len(products)),
	)
	writeEnvelope(w, http.StatusOK, "Products retrieved successfully", func(e *jx.Encoder) {
		encodeProducts(e, products)
	})
	return nil
}

// apiListProducts returns one page of active products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) error {
	return h.apiProducts(w, r, catalog.Search{})
}

// apiSearchProducts filters active products by name and price range.
func (h *Handler) apiSearchProducts(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	search := catalog.Search{Name: q.Get("name")}
	for _, param := range []struct {
		name string
		dst  *decimal.NullDecimal
	}{
		{"minPrice", &search.MinPrice},
		{"maxPrice", &search.MaxPrice},
	} {
		raw := strings.TrimSpace(q.Get(param.name))
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, "Invalid parameter: "+param.name+" must be a number.", nil)
			return nil
		}
		*param.dst = decimal.NewNullDecimal(v)
	}
	if search.MinPrice.Valid && search.MaxPrice.Valid && search.MinPrice.Decimal.GreaterThan(search.MaxPrice.Decimal) {
		writeEnvelope(w, http.StatusBadRequest, "Invalid price range: minPrice cannot be greater than maxPrice.", nil)
		return nil
	}
	return h.apiProducts(w, r, search)
}

// apiGetProduct returns a single active product.
func (h *Handler) apiGetProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return catalog.ErrProductNotFound
	}
	p, err := h.catalog.VisibleProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeEnvelope(w, http.StatusNotFound, "Product not found", nil)
			return nil
		}
		return err
	}
	writeEnvelope(w, http.StatusOK, "Product retrieved successfully", func(e *jx.Encoder) {
		encodeProduct(e, p)
	})
	return nil
}
