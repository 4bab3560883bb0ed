package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/user"
)

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeEnvelope writes {"status","message","data"}. A nil data writes null.
func writeEnvelope(w http.ResponseWriter, status int, message string, data func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) {
				if status < http.StatusBadRequest {
					e.Str("success")
				} else {
					e.Str("error")
				}
			})
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			e.Field("data", func(e *jx.Encoder) {
				if data == nil {
					e.Null()
					return
				}
				data(e)
			})
		})
	})
}

// view writes a 200 storefront view object built by fields.
func view(w http.ResponseWriter, fields func(e *jx.Encoder)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { e.Obj(fields) })
}

func encodeFailure(e *jx.Encoder, f failure) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(f.code) })
				e.Field("message", func(e *jx.Encoder) { e.Str(f.message) })
				if f.field != "" {
					e.Field("field", func(e *jx.Encoder) { e.Str(f.field) })
				}
			})
		})
	})
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func strField(e *jx.Encoder, name, value string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(value) })
}

func intField(e *jx.Encoder, name string, value int64) {
	e.Field(name, func(e *jx.Encoder) { e.Int64(value) })
}

func encodePagination(e *jx.Encoder, p paging.Page, total int) {
	e.Field("pagination", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			intField(e, "page", int64(p.Number))
			intField(e, "size", int64(p.Size))
			intField(e, "total", int64(total))
			intField(e, "pages", int64(p.Pages(total)))
		})
	})
}

func encodeCategory(e *jx.Encoder, c catalog.Category) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", c.ID)
		strField(e, "name", c.Name)
		strField(e, "slug", c.Slug)
		strField(e, "description", c.Description)
	})
}

func encodeCategories(e *jx.Encoder, categories []catalog.Category) {
	e.Arr(func(e *jx.Encoder) {
		for _, c := range categories {
			encodeCategory(e, c)
		}
	})
}

func encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", p.ID)
		strField(e, "name", p.Name)
		strField(e, "slug", p.Slug)
		strField(e, "sku", p.SKU)
		strField(e, "shortDescription", p.ShortDescription)
		strField(e, "description", p.Description)
		strField(e, "image", p.Image)
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("discountPrice", func(e *jx.Encoder) {
			if !p.DiscountPrice.Valid {
				e.Null()
				return
			}
			money(e, p.DiscountPrice.Decimal)
		})
		intField(e, "stock", int64(p.Stock))
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(p.IsActive) })
		e.Field("category", func(e *jx.Encoder) {
			if p.CategoryID == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				intField(e, "id", *p.CategoryID)
				strField(e, "name", p.CategoryName)
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, p.UpdatedAt) })
	})
}

func encodeProducts(e *jx.Encoder, products []catalog.Product) {
	e.Arr(func(e *jx.Encoder) {
		for i := range products {
			encodeProduct(e, &products[i])
		}
	})
}

type addressFields struct {
	PrimaryAddress   string
	SecondaryAddress string
	City             string
	State            string
	PostalCode       string
	Country          string
}

func encodeAddress(e *jx.Encoder, a addressFields) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "primaryAddress", a.PrimaryAddress)
		strField(e, "secondaryAddress", a.SecondaryAddress)
		strField(e, "city", a.City)
		strField(e, "state", a.State)
		strField(e, "postalCode", a.PostalCode)
		strField(e, "country", a.Country)
	})
}

// encodeCartFields writes the cart view fields into the enclosing object.
func encodeCartFields(e *jx.Encoder, c *cart.Cart) {
	e.Field("cart", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			intField(e, "id", c.ID)
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, item := range c.Items {
						e.Obj(func(e *jx.Encoder) {
							intField(e, "id", item.ID)
							intField(e, "productId", item.ProductID)
							e.Field("product", func(e *jx.Encoder) {
								if item.Product == nil {
									e.Null()
									return
								}
								encodeProduct(e, item.Product)
							})
							intField(e, "quantity", int64(item.Quantity))
							e.Field("subtotal", func(e *jx.Encoder) { money(e, item.Subtotal()) })
						})
					}
				})
			})
			intField(e, "itemCount", int64(c.ItemCount()))
			e.Field("total", func(e *jx.Encoder) { money(e, c.Total()) })
			e.Field("address", func(e *jx.Encoder) {
				if c.Address == nil {
					e.Null()
					return
				}
				encodeAddress(e, addressFields(*c.Address))
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order, detail bool) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", o.ID)
		intField(e, "userId", o.UserID)
		if o.UserEmail != "" {
			strField(e, "email", o.UserEmail)
		}
		strField(e, "status", string(o.Status))
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
		if !detail {
			return
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						intField(e, "id", item.ID)
						e.Field("productId", func(e *jx.Encoder) {
							if item.ProductID == nil {
								e.Null()
								return
							}
							e.Int64(*item.ProductID)
						})
						strField(e, "productName", item.ProductName)
						strField(e, "sku", item.SKU)
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, item.UnitPrice) })
						e.Field("discount", func(e *jx.Encoder) { money(e, item.Discount) })
						intField(e, "quantity", int64(item.Quantity))
						e.Field("subtotal", func(e *jx.Encoder) { money(e, item.Subtotal) })
					})
				}
			})
		})
		e.Field("address", func(e *jx.Encoder) { encodeAddress(e, addressFields(o.Address)) })
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i], false)
		}
	})
}

func encodeStatuses(e *jx.Encoder, statuses []order.Status) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range statuses {
			e.Str(string(s))
		}
	})
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", u.ID)
		strField(e, "email", u.Email)
		e.Field("roles", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, r := range u.Roles {
					e.Str(string(r))
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, u.CreatedAt) })
	})
}

func encodeUsers(e *jx.Encoder, users []user.User) {
	e.Arr(func(e *jx.Encoder) {
		for i := range users {
			encodeUser(e, &users[i])
		}
	})
}

func encodeProfile(e *jx.Encoder, p *user.Profile) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "firstName", p.FirstName)
		strField(e, "surname", p.Surname)
		strField(e, "phone", p.Phone)
		strField(e, "countryPrefixCode", p.CountryPrefixCode)
		strField(e, "primaryAddress", p.PrimaryAddress)
		strField(e, "secondaryAddress", p.SecondaryAddress)
		strField(e, "city", p.City)
		strField(e, "state", p.State)
		strField(e, "postalCode", p.PostalCode)
		strField(e, "country", p.Country)
	})
}
