package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/storefront/internal/domain/cart"
)

func (h *Handler) cartPage(w http.ResponseWriter, r *http.Request) error {
	u := currentUser(r.Context())
	c, err := h.carts.Get(r.Context(), u.ID)
	if err != nil {
		return err
	}
	total, err := h.carts.Total(r.Context(), u.ID)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		encodeCartFields(e, c)
		e.Field("total", func(e *jx.Encoder) { money(e, total) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

// formQuantity reads the optional quantity form field.
func formQuantity(r *http.Request, def int) (int, error) {
	if err := r.ParseForm(); err != nil {
		return 0, invalid("form", "malformed body")
	}
	raw := strings.TrimSpace(r.PostForm.Get("quantity"))
	if raw == "" {
		return def, nil
	}
	q, err := strconv.Atoi(raw)
	if err != nil {
		return 0, cart.ErrInvalidQuantity
	}
	return q, nil
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) error {
	productID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	quantity, err := formQuantity(r, 1)
	if err != nil {
		return err
	}
	if err := h.carts.AddProduct(r.Context(), currentUser(r.Context()).ID, productID, quantity); err != nil {
		return err
	}
	redirect(w, r, "/cart")
	return nil
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) error {
	productID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	quantity, err := strconv.Atoi(mux.Vars(r)["quantity"])
	if err != nil {
		return cart.ErrInvalidQuantity
	}
	if err := h.carts.UpdateQuantity(r.Context(), currentUser(r.Context()).ID, productID, quantity); err != nil {
		return err
	}
	redirect(w, r, "/cart")
	return nil
}

// removeFromCart drops quantity units of the product, or the whole line when
// no quantity is posted.
func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) error {
	productID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	quantity, err := formQuantity(r, 0)
	if err != nil {
		return err
	}
	if err := h.carts.RemoveProduct(r.Context(), currentUser(r.Context()).ID, productID, quantity); err != nil {
		return err
	}
	redirect(w, r, "/cart")
	return nil
}
