// Package memstore keeps the storefront's data in process memory. It backs
// handler tests and local demos without PostgreSQL and follows the same
// contracts as the repository package.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/user"
)

var (
	_ catalog.ProductRepository  = ProductRepository{}
	_ catalog.CategoryRepository = CategoryRepository{}
	_ cart.Repository            = CartRepository{}
	_ order.Repository           = OrderRepository{}
	_ user.Repository            = UserRepository{}
)

type cartRow struct {
	cart.Cart
	items []cart.Item
}

// Store holds every table. The zero value is not usable, call New.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	products   map[int64]catalog.Product
	categories map[int64]catalog.Category
	carts      map[int64]*cartRow
	orders     map[string]order.Order
	users      map[int64]user.User
	profiles   map[int64]user.Profile
	tokens     map[string]user.ResetToken
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:        time.Now,
		products:   make(map[int64]catalog.Product),
		categories: make(map[int64]catalog.Category),
		carts:      make(map[int64]*cartRow),
		orders:     make(map[string]order.Order),
		users:      make(map[int64]user.User),
		profiles:   make(map[int64]user.Profile),
		tokens:     make(map[string]user.ResetToken),
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Products returns the product repository view.
func (s *Store) Products() ProductRepository { return ProductRepository{s} }

// Categories returns the category repository view.
func (s *Store) Categories() CategoryRepository { return CategoryRepository{s} }

// Carts returns the cart repository view.
func (s *Store) Carts() CartRepository { return CartRepository{s} }

// Orders returns the order repository view.
func (s *Store) Orders() OrderRepository { return OrderRepository{s} }

// Users returns the user repository view.
func (s *Store) Users() UserRepository { return UserRepository{s} }

// Stock returns the stored stock of a product, or -1 when it does not exist.
func (s *Store) Stock(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return -1
	}
	return p.Stock
}

// CartStatus returns the status of a cart, or "" when it does not exist.
func (s *Store) CartStatus(cartID int64) cart.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[cartID]; ok {
		return c.Status
	}
	return ""
}

func page[T any](rows []T, p paging.Page) []T {
	from := min(p.Offset(), len(rows))
	to := min(from+p.Size, len(rows))
	return rows[from:to]
}

// ProductRepository implements catalog.ProductRepository.
type ProductRepository struct{ s *Store }

func (r ProductRepository) withCategory(p catalog.Product) catalog.Product {
	p.CategoryName = ""
	if p.CategoryID != nil {
		if c, ok := r.s.categories[*p.CategoryID]; ok {
			p.CategoryName = c.Name
		}
	}
	return p
}

func matches(p catalog.Product, q catalog.Search) bool {
	switch {
	case q.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Name)):
		return false
	case q.SKU != "" && p.SKU != q.SKU:
		return false
	case q.ShortDescription != "" &&
		!strings.Contains(strings.ToLower(p.ShortDescription), strings.ToLower(q.ShortDescription)):
		return false
	case q.MinPrice.Valid && p.Price.LessThan(q.MinPrice.Decimal):
		return false
	case q.MaxPrice.Valid && p.Price.GreaterThan(q.MaxPrice.Decimal):
		return false
	case q.Stock != nil && p.Stock != *q.Stock:
		return false
	case q.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *q.CategoryID):
		return false
	case q.CreatedFrom != nil && p.CreatedAt.Before(*q.CreatedFrom):
		return false
	case q.CreatedTo != nil && p.CreatedAt.After(*q.CreatedTo):
		return false
	case q.ActiveOnly && !p.IsActive:
		return false
	}
	return true
}

func (r ProductRepository) Search(_ context.Context, q catalog.Search, p paging.Page) ([]catalog.Product, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var found []catalog.Product
	for _, prod := range r.s.products {
		if matches(prod, q) {
			found = append(found, r.withCategory(prod))
		}
	}
	slices.SortFunc(found, func(a, b catalog.Product) int { return cmp.Compare(b.ID, a.ID) })
	return page(found, p), len(found), nil
}

func (r ProductRepository) GetByID(_ context.Context, id int64) (*catalog.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	p = r.withCategory(p)
	return &p, nil
}

func (r ProductRepository) SlugExists(_ context.Context, slug string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// conflict reports a unique violation by another product.
func (r ProductRepository) conflict(p *catalog.Product) error {
	for _, other := range r.s.products {
		if other.ID == p.ID {
			continue
		}
		if other.SKU == p.SKU {
			return catalog.ErrDuplicateSKU
		}
		if other.Slug == p.Slug {
			return catalog.ErrDuplicateSlug
		}
	}
	return nil
}

func (r ProductRepository) Create(_ context.Context, p *catalog.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.conflict(p); err != nil {
		return err
	}
	p.ID = r.s.nextID()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.products[p.ID] = *p
	*p = r.withCategory(*p)
	return nil
}

func (r ProductRepository) Update(_ context.Context, p *catalog.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.products[p.ID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	if err := r.conflict(p); err != nil {
		return err
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = r.s.now()
	r.s.products[p.ID] = *p
	*p = r.withCategory(*p)
	return nil
}

func (r ProductRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(r.s.products, id)
	for _, row := range r.s.carts {
		for i := range row.items {
			if row.items[i].ProductID == id {
				row.items[i].ProductID = 0
			}
		}
	}
	return nil
}

// CategoryRepository implements catalog.CategoryRepository.
type CategoryRepository struct{ s *Store }

func (r CategoryRepository) List(_ context.Context) ([]catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]catalog.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b catalog.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r CategoryRepository) GetByID(_ context.Context, id int64) (*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	return &c, nil
}

func (r CategoryRepository) SlugExists(_ context.Context, slug string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r CategoryRepository) slugTaken(c *catalog.Category) bool {
	for _, other := range r.s.categories {
		if other.ID != c.ID && other.Slug == c.Slug {
			return true
		}
	}
	return false
}

func (r CategoryRepository) Create(_ context.Context, c *catalog.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.slugTaken(c) {
		return catalog.ErrDuplicateSlug
	}
	c.ID = r.s.nextID()
	c.CreatedAt = r.s.now()
	c.UpdatedAt = c.CreatedAt
	r.s.categories[c.ID] = *c
	return nil
}

func (r CategoryRepository) Update(_ context.Context, c *catalog.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.categories[c.ID]
	if !ok {
		return catalog.ErrCategoryNotFound
	}
	if r.slugTaken(c) {
		return catalog.ErrDuplicateSlug
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = r.s.now()
	r.s.categories[c.ID] = *c
	return nil
}

// Delete removes the category and detaches its products.
func (r CategoryRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	delete(r.s.categories, id)
	for pid, p := range r.s.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			r.s.products[pid] = p
		}
	}
	return nil
}

// CartRepository implements cart.Repository.
type CartRepository struct{ s *Store }

// load copies a cart and resolves its products. Lines of deleted products
// keep a zero ProductID and a nil Product.
func (r CartRepository) load(row *cartRow) *cart.Cart {
	c := row.Cart
	c.Items = make([]cart.Item, len(row.items))
	for i, item := range row.items {
		if p, ok := r.s.products[item.ProductID]; ok {
			p = ProductRepository{r.s}.withCategory(p)
			item.Product = &p
		}
		c.Items[i] = item
	}
	if row.Address != nil {
		a := *row.Address
		c.Address = &a
	}
	return &c
}

func (r CartRepository) active(userID int64) *cartRow {
	for _, row := range r.s.carts {
		if row.UserID == userID && row.Status == cart.StatusActive {
			return row
		}
	}
	return nil
}

func (r CartRepository) FindActive(_ context.Context, userID int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := r.active(userID)
	if row == nil {
		return nil, cart.ErrNotFound
	}
	return r.load(row), nil
}

func (r CartRepository) CreateActive(_ context.Context, userID int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row := r.active(userID); row != nil {
		return r.load(row), nil
	}
	now := r.s.now()
	row := &cartRow{Cart: cart.Cart{
		ID:        r.s.nextID(),
		UserID:    userID,
		Status:    cart.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.s.carts[row.ID] = row
	return r.load(row), nil
}

func (r CartRepository) AddItem(_ context.Context, cartID, productID int64, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	row.UpdatedAt = r.s.now()
	for i := range row.items {
		if row.items[i].ProductID == productID {
			row.items[i].Quantity += quantity
			return nil
		}
	}
	row.items = append(row.items, cart.Item{
		ID:        r.s.nextID(),
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: row.UpdatedAt,
	})
	return nil
}

// item finds a cart line by id across all carts.
func (r CartRepository) item(itemID int64) (*cartRow, int) {
	for _, row := range r.s.carts {
		for i := range row.items {
			if row.items[i].ID == itemID {
				return row, i
			}
		}
	}
	return nil, -1
}

func (r CartRepository) SetItemQuantity(_ context.Context, itemID int64, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, i := r.item(itemID)
	if row == nil {
		return cart.ErrItemNotFound
	}
	row.items[i].Quantity = quantity
	row.UpdatedAt = r.s.now()
	return nil
}

func (r CartRepository) RemoveItem(_ context.Context, itemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, i := r.item(itemID)
	if row == nil {
		return cart.ErrItemNotFound
	}
	row.items = slices.Delete(row.items, i, i+1)
	row.UpdatedAt = r.s.now()
	return nil
}

func (r CartRepository) SaveAddress(_ context.Context, cartID int64, a cart.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	row.Address = &a
	row.UpdatedAt = r.s.now()
	return nil
}

func (r CartRepository) ExpireActiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, row := range r.s.carts {
		if row.Status == cart.StatusActive && row.CreatedAt.Before(cutoff) {
			row.Status = cart.StatusExpired
			row.UpdatedAt = r.s.now()
			n++
		}
	}
	return n, nil
}

// OrderRepository implements order.Repository.
type OrderRepository struct{ s *Store }

// Place applies the checkout atomically: nothing changes unless every line
// can be decremented.
func (r OrderRepository) Place(_ context.Context, o *order.Order, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, item := range o.Items {
		if item.ProductID == nil {
			return &order.ProductUnavailableError{}
		}
		p, ok := r.s.products[*item.ProductID]
		if !ok || !p.IsActive {
			return &order.ProductUnavailableError{ProductID: *item.ProductID}
		}
		if p.Stock < item.Quantity {
			return &cart.InsufficientStockError{ProductID: p.ID, Requested: item.Quantity, Available: p.Stock}
		}
	}
	row, ok := r.s.carts[cartID]
	if !ok || row.Status != cart.StatusActive {
		return cart.ErrNotFound
	}

	for i := range o.Items {
		item := &o.Items[i]
		p := r.s.products[*item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = r.s.now()
		r.s.products[p.ID] = p
		item.ID = r.s.nextID()
	}
	row.Status = cart.StatusOrdered
	row.UpdatedAt = r.s.now()

	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.s.orders[o.ID] = stored
	return nil
}

func (r OrderRepository) withEmail(o order.Order) order.Order {
	o.UserEmail = r.s.users[o.UserID].Email
	o.Items = slices.Clone(o.Items)
	return o
}

func (r OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = r.withEmail(o)
	return &o, nil
}

// sorted returns orders matching keep, newest first.
func (r OrderRepository) sorted(keep func(order.Order) bool) []order.Order {
	var out []order.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, r.withEmail(o))
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (r OrderRepository) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (r OrderRepository) List(_ context.Context, f order.Filter, p paging.Page) ([]order.Order, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sorted(func(o order.Order) bool {
		return (f.Status == "" || o.Status == f.Status) && (f.UserID == 0 || o.UserID == f.UserID)
	})
	return page(all, p), len(all), nil
}

func (r OrderRepository) Latest(_ context.Context, n int) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sorted(func(order.Order) bool { return true })
	return all[:min(n, len(all))], nil
}

func (r OrderRepository) UpdateStatus(_ context.Context, id string, from, to order.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStatusChanged
	}
	o.Status = to
	o.UpdatedAt = r.s.now()
	r.s.orders[id] = o
	return nil
}

// UserRepository implements user.Repository.
type UserRepository struct{ s *Store }

func cloneUser(u user.User) *user.User {
	u.Roles = slices.Clone(u.Roles)
	return &u
}

func (r UserRepository) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if other.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	u.ID = r.s.nextID()
	u.CreatedAt = r.s.now()
	r.s.users[u.ID] = *cloneUser(*u)
	return nil
}

func (r UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r UserRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (r UserRepository) update(id int64, fn func(*user.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(&u)
	r.s.users[id] = u
	return nil
}

func (r UserRepository) UpdatePassword(_ context.Context, id int64, hash string) error {
	return r.update(id, func(u *user.User) { u.PasswordHash = hash })
}

func (r UserRepository) UpdateRoles(_ context.Context, id int64, roles []user.Role) error {
	return r.update(id, func(u *user.User) { u.Roles = slices.Clone(roles) })
}

// newest returns users newest first.
func (r UserRepository) newest() []user.User {
	out := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *cloneUser(u))
	}
	slices.SortFunc(out, func(a, b user.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (r UserRepository) List(_ context.Context, p paging.Page) ([]user.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.newest()
	return page(all, p), len(all), nil
}

func (r UserRepository) Latest(_ context.Context, n int) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.newest()
	return all[:min(n, len(all))], nil
}

func (r UserRepository) Profile(_ context.Context, userID int64) (*user.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &p, nil
}

func (r UserRepository) SaveProfile(_ context.Context, p *user.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[p.UserID]; !ok {
		return user.ErrNotFound
	}
	r.s.profiles[p.UserID] = *p
	return nil
}

func (r UserRepository) CreateResetToken(_ context.Context, t *user.ResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[t.Token] = *t
	return nil
}

func (r UserRepository) FindResetToken(_ context.Context, token string) (*user.ResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &t, nil
}

func (r UserRepository) DeleteResetTokens(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.tokens {
		if t.UserID == userID {
			delete(r.s.tokens, k)
		}
	}
	return nil
}
