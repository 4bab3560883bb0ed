package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/paging"
)

const dateLayout = "2006-01-02"

// pathID reads a numeric route variable. Routes constrain it to digits, so
// only overflow fails.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, invalid(name, "must be a number")
	}
	return id, nil
}

// pageParam reads the 1-based page and page size from the query. Malformed
// values fall back to the defaults.
func pageParam(q url.Values, sizeKey string, def, max int) paging.Page {
	number, _ := strconv.Atoi(q.Get("page"))
	size := def
	if sizeKey != "" {
		size, _ = strconv.Atoi(q.Get(sizeKey))
	}
	return paging.New(number, size, def, max)
}

func optInt(values url.Values, field string) (*int, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalid(field, "must be an integer")
	}
	return &v, nil
}

func optInt64(values url.Values, field string) (*int64, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalid(field, "must be an integer")
	}
	return &v, nil
}

func optDecimal(values url.Values, field string) (decimal.NullDecimal, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, invalid(field, "must be a number")
	}
	return decimal.NewNullDecimal(v), nil
}

// optDate parses a YYYY-MM-DD value. endOfDay moves it to the last instant
// of that day so the range is inclusive.
func optDate(values url.Values, field string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, invalid(field, "must be a date (YYYY-MM-DD)")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func checkbox(values url.Values, field string) bool {
	switch strings.ToLower(values.Get(field)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// parseSearch reads catalog filters from the query string.
func parseSearch(q url.Values) (catalog.Search, error) {
	s := catalog.Search{
		Name:             q.Get("name"),
		SKU:              strings.TrimSpace(q.Get("sku")),
		ShortDescription: q.Get("shortDescription"),
	}
	var err error
	if s.MinPrice, err = optDecimal(q, "minPrice"); err != nil {
		return s, err
	}
	if s.MaxPrice, err = optDecimal(q, "maxPrice"); err != nil {
		return s, err
	}
	if s.MinPrice.Valid && s.MaxPrice.Valid && s.MinPrice.Decimal.GreaterThan(s.MaxPrice.Decimal) {
		return s, invalid("minPrice", "must not exceed maxPrice")
	}
	if s.Stock, err = optInt(q, "stock"); err != nil {
		return s, err
	}
	if s.CategoryID, err = optInt64(q, "categoryId"); err != nil {
		return s, err
	}
	if s.CreatedFrom, err = optDate(q, "createdFrom", false); err != nil {
		return s, err
	}
	if s.CreatedTo, err = optDate(q, "createdTo", true); err != nil {
		return s, err
	}
	return s, nil
}

// parseProductForm reads the back-office product form.
func parseProductForm(r *http.Request) (catalog.ProductInput, error) {
	if err := r.ParseForm(); err != nil {
		return catalog.ProductInput{}, invalid("form", "malformed body")
	}
	f := r.PostForm
	in := catalog.ProductInput{
		Name:             f.Get("name"),
		SKU:              f.Get("sku"),
		ShortDescription: f.Get("shortDescription"),
		Description:      f.Get("description"),
		Image:            strings.TrimSpace(f.Get("image")),
		IsActive:         checkbox(f, "isActive"),
	}
	price, err := optDecimal(f, "price")
	if err != nil {
		return in, err
	}
	if !price.Valid {
		return in, invalid("price", "must not be blank")
	}
	in.Price = price.Decimal
	if in.DiscountPrice, err = optDecimal(f, "discountPrice"); err != nil {
		return in, err
	}
	stock, err := optInt(f, "stock")
	if err != nil {
		return in, err
	}
	if stock != nil {
		in.Stock = *stock
	}
	if in.CategoryID, err = optInt64(f, "categoryId"); err != nil {
		return in, err
	}
	return in, nil
}

// safeNext returns next when it is a local path, else def.
func safeNext(next, def string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return def
	}
	return next
}
