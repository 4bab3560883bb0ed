package catalog

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/validate"
	"github.com/xenking/storefront/internal/logging"
)

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	CategoryID       *int64
	Name             string
	SKU              string
	ShortDescription string
	Description      string
	Image            string
	Price            decimal.Decimal
	DiscountPrice    decimal.NullDecimal
	Stock            int
	IsActive         bool
}

// Validate checks the required fields and numeric bounds.
func (in ProductInput) Validate() error {
	if err := validate.First(
		validate.Required("name", in.Name),
		validate.Required("sku", in.SKU),
	); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return &validate.Error{Field: "price", Message: "must not be negative"}
	}
	if in.DiscountPrice.Valid {
		if in.DiscountPrice.Decimal.IsNegative() {
			return &validate.Error{Field: "discountPrice", Message: "must not be negative"}
		}
		if in.DiscountPrice.Decimal.GreaterThan(in.Price) {
			return &validate.Error{Field: "discountPrice", Message: "must not exceed price"}
		}
	}
	if in.Stock < 0 {
		return &validate.Error{Field: "stock", Message: "must not be negative"}
	}
	return nil
}

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Name        string
	Description string
}

// Service implements catalog browsing and back-office maintenance.
type Service struct {
	products      ProductRepository
	categories    CategoryRepository
	productSlugs  *SlugGenerator
	categorySlugs *SlugGenerator
	lg            logging.Loggers
}

// NewService creates a catalog Service.
func NewService(products ProductRepository, categories CategoryRepository, lg logging.Loggers) *Service {
	return &Service{
		products:      products,
		categories:    categories,
		productSlugs:  NewSlugGenerator(products, lg.Analytics),
		categorySlugs: NewSlugGenerator(categories, lg.Analytics),
		lg:            lg,
	}
}

// Search returns one page of products matching s and the total match count.
func (s *Service) Search(ctx context.Context, q Search, p paging.Page) ([]Product, int, error) {
	q.Name = strings.TrimSpace(q.Name)
	q.SKU = strings.TrimSpace(q.SKU)
	q.ShortDescription = strings.TrimSpace(q.ShortDescription)

	products, total, err := s.products.Search(ctx, q, p)
	if err != nil {
		return nil, 0, errors.Wrap(err, "search products")
	}
	return products, total, nil
}

// Product returns a product by ID.
func (s *Service) Product(ctx context.Context, id int64) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// VisibleProduct returns an active product by ID; inactive products are
// reported as not found.
func (s *Service) VisibleProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	s.lg.Analytics.Info("Product viewed", zap.Int64("product_id", id))
	return p, nil
}

// CreateProduct validates in, assigns a unique slug and stores the product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	slug, err := s.productSlugs.Generate(ctx, in.Name, "")
	if err != nil {
		return nil, errors.Wrap(err, "generate product slug")
	}

	p := &Product{Slug: slug}
	applyProductInput(p, in)
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	s.lg.Stock.Info("Product created",
		zap.Int64("product_id", p.ID),
		zap.String("sku", p.SKU),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}

// UpdateProduct applies in to the product with the given ID. The slug is
// regenerated only when the name changes.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) != p.Name {
		slug, err := s.productSlugs.Generate(ctx, in.Name, p.Slug)
		if err != nil {
			return nil, errors.Wrap(err, "generate product slug")
		}
		p.Slug = slug
	}

	previousStock := p.Stock
	applyProductInput(p, in)
	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %d", id)
	}

	if previousStock != p.Stock {
		s.lg.Stock.Info("Product stock changed",
			zap.Int64("product_id", p.ID),
			zap.Int("from", previousStock),
			zap.Int("to", p.Stock),
		)
	}
	return p, nil
}

// DeleteProduct removes a product. Cart and order lines keep their rows with
// the product reference cleared.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.lg.Stock.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// Categories lists all categories ordered by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.categories.List(ctx)
}

// Category returns a category by ID.
func (s *Service) Category(ctx context.Context, id int64) (*Category, error) {
	return s.categories.GetByID(ctx, id)
}

// CreateCategory stores a new category with a unique slug.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	if err := validate.Required("name", in.Name); err != nil {
		return nil, err
	}
	slug, err := s.categorySlugs.Generate(ctx, in.Name, "")
	if err != nil {
		return nil, errors.Wrap(err, "generate category slug")
	}
	c := &Category{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return c, nil
}

// UpdateCategory renames or re-describes a category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (*Category, error) {
	if err := validate.Required("name", in.Name); err != nil {
		return nil, err
	}
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != c.Name {
		slug, err := s.categorySlugs.Generate(ctx, name, c.Slug)
		if err != nil {
			return nil, errors.Wrap(err, "generate category slug")
		}
		c.Name = name
		c.Slug = slug
	}
	c.Description = strings.TrimSpace(in.Description)
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "update category %d", id)
	}
	return c, nil
}

// DeleteCategory removes a category; its products become uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.categories.Delete(ctx, id)
}

func (s *Service) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, *id); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return &validate.Error{Field: "categoryId", Message: "unknown category"}
		}
		return err
	}
	return nil
}

func applyProductInput(p *Product, in ProductInput) {
	p.CategoryID = in.CategoryID
	p.Name = strings.TrimSpace(in.Name)
	p.SKU = strings.TrimSpace(in.SKU)
	p.ShortDescription = strings.TrimSpace(in.ShortDescription)
	p.Description = in.Description
	p.Image = strings.TrimSpace(in.Image)
	p.Price = in.Price
	p.DiscountPrice = in.DiscountPrice
	p.Stock = in.Stock
	p.IsActive = in.IsActive
}
