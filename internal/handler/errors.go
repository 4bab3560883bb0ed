package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/domain/validate"
)

// failure is the client-facing form of a domain error.
type failure struct {
	status  int
	code    string
	message string
	field   string
}

var sentinels = []struct {
	err    error
	status int
	code   string
}{
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{catalog.ErrCategoryNotFound, http.StatusNotFound, "category_not_found"},
	{catalog.ErrDuplicateSKU, http.StatusConflict, "duplicate_sku"},
	{catalog.ErrDuplicateSlug, http.StatusConflict, "duplicate_slug"},
	{catalog.ErrEmptySlugSource, http.StatusBadRequest, "invalid_name"},
	{catalog.ErrSlugExhausted, http.StatusConflict, "slug_exhausted"},

	{cart.ErrNotFound, http.StatusNotFound, "cart_not_found"},
	{cart.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{cart.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},

	{order.ErrNotFound, http.StatusNotFound, "order_not_found"},
	{order.ErrMissingAddress, http.StatusBadRequest, "missing_address"},
	{order.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{order.ErrStatusChanged, http.StatusConflict, "status_changed"},

	{user.ErrNotFound, http.StatusNotFound, "user_not_found"},
	{user.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{user.ErrInvalidResetToken, http.StatusBadRequest, "invalid_reset_token"},
	{user.ErrUnknownRole, http.StatusBadRequest, "unknown_role"},
}

// classify maps err to a failure. ok is false for unexpected errors, which
// must not leak to the client.
func classify(err error) (f failure, ok bool) {
	var (
		vErr     *validate.Error
		stockErr *cart.InsufficientStockError
		unavErr  *order.ProductUnavailableError
		transErr *order.TransitionError
	)
	switch {
	case errors.As(err, &vErr):
		return failure{
			status:  http.StatusBadRequest,
			code:    "invalid_" + vErr.Field,
			message: vErr.Error(),
			field:   vErr.Field,
		}, true
	case errors.As(err, &stockErr):
		return failure{status: http.StatusConflict, code: "insufficient_stock", message: stockErr.Error()}, true
	case errors.As(err, &unavErr):
		return failure{status: http.StatusConflict, code: "product_unavailable", message: unavErr.Error()}, true
	case errors.As(err, &transErr):
		return failure{status: http.StatusConflict, code: "invalid_transition", message: transErr.Error()}, true
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return failure{status: s.status, code: s.code, message: s.err.Error()}, true
		}
	}
	return failure{}, false
}

// invalid reports a malformed request field.
func invalid(field, message string) error {
	return &validate.Error{Field: field, Message: message}
}
