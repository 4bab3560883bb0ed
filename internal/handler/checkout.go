package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/user"
)

// addressPage shows the shipping address form, prefilled from the cart or,
// failing that, from the customer profile.
func (h *Handler) addressPage(w http.ResponseWriter, r *http.Request) error {
	u := currentUser(r.Context())
	c, err := h.carts.Get(r.Context(), u.ID)
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		redirect(w, r, withQuery("/cart", "error", "empty_cart"))
		return nil
	}

	var a addressFields
	if c.Address != nil {
		a = addressFields(*c.Address)
	} else {
		p, err := h.users.Profile(r.Context(), u.ID)
		if err != nil {
			return err
		}
		a = profileAddress(p)
	}
	view(w, func(e *jx.Encoder) {
		e.Field("address", func(e *jx.Encoder) { encodeAddress(e, a) })
		strField(e, "error", r.URL.Query().Get("error"))
	})
	return nil
}

func profileAddress(p *user.Profile) addressFields {
	return addressFields{
		PrimaryAddress:   p.PrimaryAddress,
		SecondaryAddress: p.SecondaryAddress,
		City:             p.City,
		State:            p.State,
		PostalCode:       p.PostalCode,
		Country:          p.Country,
	}
}

func (h *Handler) saveAddress(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return invalid("form", "malformed body")
	}
	f := r.PostForm
	a := cart.Address{
		PrimaryAddress:   f.Get("primaryAddress"),
		SecondaryAddress: f.Get("secondaryAddress"),
		City:             f.Get("city"),
		State:            f.Get("state"),
		PostalCode:       f.Get("postalCode"),
		Country:          f.Get("country"),
	}
	if err := h.carts.SetAddress(r.Context(), currentUser(r.Context()).ID, a); err != nil {
		return err
	}
	redirect(w, r, "/checkout/summary")
	return nil
}

// checkoutPage renders the summary and confirmation views. Both send the
// customer back to the cart while it is empty or lacks an address.
func (h *Handler) checkoutPage(step string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		u := currentUser(r.Context())
		c, err := h.carts.Get(r.Context(), u.ID)
		if err != nil {
			return err
		}
		switch {
		case c.IsEmpty():
			redirect(w, r, withQuery("/cart", "error", "empty_cart"))
			return nil
		case c.Address == nil:
			redirect(w, r, withQuery("/cart", "error", "missing_address"))
			return nil
		}
		view(w, func(e *jx.Encoder) {
			strField(e, "step", step)
			encodeCartFields(e, c)
			if step == "confirm" {
				strField(e, "action", "/checkout/confirm")
			}
		})
		return nil
	}
}

func (h *Handler) confirmCheckout(w http.ResponseWriter, r *http.Request) error {
	u := currentUser(r.Context())
	o, err := h.orders.Checkout(r.Context(), u.ID, u.Email)
	if err != nil {
		return err
	}
	h.observer.OrderPlaced(r.Context(), o)
	redirect(w, r, "/orders/"+o.ID)
	return nil
}

func (h *Handler) ordersPage(w http.ResponseWriter, r *http.Request) error {
	orders, err := h.orders.ForUser(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) { encodeOrders(e, orders) })
	})
	return nil
}

func (h *Handler) orderPage(w http.ResponseWriter, r *http.Request) error {
	o, err := h.orders.GetForUser(r.Context(), currentUser(r.Context()).ID, mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	view(w, func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o, true) })
	})
	return nil
}
