package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/validate"
	"github.com/xenking/storefront/internal/logging"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID    map[int64]*Product
	nextID  int64
	created []*Product
	updated []*Product
	search  Search
}

func newProductRepo(products ...*Product) *mockProductRepo {
	m := &mockProductRepo{byID: make(map[int64]*Product), nextID: 100}
	for _, p := range products {
		m.byID[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) Search(_ context.Context, s Search, _ paging.Page) ([]Product, int, error) {
	m.search = s
	return nil, 0, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, p := range m.byID {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepo) Create(_ context.Context, p *Product) error {
	m.nextID++
	p.ID = m.nextID
	m.byID[p.ID] = p
	m.created = append(m.created, p)
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *Product) error {
	m.byID[p.ID] = p
	m.updated = append(m.updated, p)
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return ErrProductNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockCategoryRepo struct {
	byID map[int64]*Category
}

func (m *mockCategoryRepo) List(_ context.Context) ([]Category, error) { return nil, nil }

func (m *mockCategoryRepo) GetByID(_ context.Context, id int64) (*Category, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return c, nil
}

func (m *mockCategoryRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, c := range m.byID {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCategoryRepo) Create(_ context.Context, c *Category) error {
	c.ID = int64(len(m.byID) + 1)
	m.byID[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) Update(_ context.Context, c *Category) error {
	m.byID[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func newCatalogService(products *mockProductRepo) *Service {
	categories := &mockCategoryRepo{byID: map[int64]*Category{
		1: {ID: 1, Name: "Shoes", Slug: "shoes"},
	}}
	return NewService(products, categories, logging.Nop())
}

func validInput(name string) ProductInput {
	return ProductInput{
		Name:     name,
		SKU:      "SKU-" + name,
		Price:    decimal.RequireFromString("19.99"),
		Stock:    5,
		IsActive: true,
	}
}

// --- Tests ---

func TestService_CreateProduct(t *testing.T) {
	repo := newProductRepo(&Product{ID: 1, Name: "Red Shoe", Slug: "red-shoe"})
	svc := newCatalogService(repo)

	p, err := svc.CreateProduct(context.Background(), validInput("Red Shoe"))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe-1", p.Slug)
	assert.Equal(t, int64(101), p.ID)
	require.Len(t, repo.created, 1)
}

func TestService_CreateProduct_Validation(t *testing.T) {
	svc := newCatalogService(newProductRepo())
	unknownCategory := int64(42)

	tests := []struct {
		name  string
		in    ProductInput
		field string
	}{
		{name: "blank name", in: ProductInput{SKU: "X"}, field: "name"},
		{name: "blank sku", in: ProductInput{Name: "X"}, field: "sku"},
		{name: "negative price", in: ProductInput{Name: "X", SKU: "X", Price: decimal.NewFromInt(-1)}, field: "price"},
		{
			name: "discount above price",
			in: ProductInput{
				Name: "X", SKU: "X", Price: decimal.NewFromInt(5),
				DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(6)),
			},
			field: "discountPrice",
		},
		{name: "negative stock", in: ProductInput{Name: "X", SKU: "X", Stock: -1}, field: "stock"},
		{
			name:  "unknown category",
			in:    ProductInput{Name: "X", SKU: "X", CategoryID: &unknownCategory},
			field: "categoryId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), tt.in)
			field, ok := validate.Field(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestService_UpdateProduct_KeepsOwnSlug(t *testing.T) {
	repo := newProductRepo(&Product{ID: 7, Name: "Red Shoe", Slug: "red-shoe", Stock: 1})
	svc := newCatalogService(repo)

	in := validInput("Red Shoe")
	in.Stock = 9
	p, err := svc.UpdateProduct(context.Background(), 7, in)
	require.NoError(t, err)
	assert.Equal(t, "red-shoe", p.Slug)
	assert.Equal(t, 9, p.Stock)
}

func TestService_UpdateProduct_RenameRegeneratesSlug(t *testing.T) {
	repo := newProductRepo(
		&Product{ID: 7, Name: "Red Shoe", Slug: "red-shoe"},
		&Product{ID: 8, Name: "Blue Shoe", Slug: "blue-shoe"},
	)
	svc := newCatalogService(repo)

	p, err := svc.UpdateProduct(context.Background(), 7, validInput("Blue Shoe"))
	require.NoError(t, err)
	assert.Equal(t, "blue-shoe-1", p.Slug)
}

func TestService_UpdateProduct_NotFound(t *testing.T) {
	svc := newCatalogService(newProductRepo())
	_, err := svc.UpdateProduct(context.Background(), 7, validInput("Red Shoe"))
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestService_VisibleProduct_HidesInactive(t *testing.T) {
	repo := newProductRepo(&Product{ID: 3, Name: "Hidden", IsActive: false})
	svc := newCatalogService(repo)

	_, err := svc.VisibleProduct(context.Background(), 3)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestService_Search_TrimsTerms(t *testing.T) {
	repo := newProductRepo()
	svc := newCatalogService(repo)

	_, _, err := svc.Search(context.Background(), Search{Name: "  shoe ", SKU: " A1 "}, paging.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, "shoe", repo.search.Name)
	assert.Equal(t, "A1", repo.search.SKU)
}

func TestService_CreateCategory(t *testing.T) {
	svc := newCatalogService(newProductRepo())

	c, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Shoes"})
	require.NoError(t, err)
	assert.Equal(t, "shoes-1", c.Slug)
}
