package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

type catalogSeed struct {
	Categories []categorySeed
	Products   []productSeed
}

type categorySeed struct {
	Name        string
	Description string
}

type productSeed struct {
	Name             string
	SKU              string
	ShortDescription string
	Description      string
	Image            string
	Price            decimal.Decimal
	DiscountPrice    decimal.NullDecimal
	Stock            int
	Active           bool
	Category         string
}

func (s productSeed) input() catalog.ProductInput {
	return catalog.ProductInput{
		Name:             s.Name,
		SKU:              s.SKU,
		ShortDescription: s.ShortDescription,
		Description:      s.Description,
		Image:            s.Image,
		Price:            s.Price,
		DiscountPrice:    s.DiscountPrice,
		Stock:            s.Stock,
		IsActive:         s.Active,
	}
}

// decodeCatalog reads a seed document of the form
//
//	{"categories": [{"name": ..., "description": ...}],
//	 "products": [{"name": ..., "sku": ..., "price": "9.99", "category": ...}]}
//
// Unknown keys are skipped. Products are active unless "active" is false.
func decodeCatalog(d *jx.Decoder) (*catalogSeed, error) {
	var seed catalogSeed
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "categories":
			return d.Arr(func(d *jx.Decoder) error {
				c, err := decodeCategory(d)
				if err != nil {
					return errors.Wrapf(err, "category %d", len(seed.Categories))
				}
				seed.Categories = append(seed.Categories, c)
				return nil
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product %d", len(seed.Products))
				}
				seed.Products = append(seed.Products, p)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &seed, nil
}

func decodeCategory(d *jx.Decoder) (categorySeed, error) {
	var c categorySeed
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			c.Name, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return c, err
	}
	if c.Name == "" {
		return c, errors.New("name is required")
	}
	return c, nil
}

func decodeProduct(d *jx.Decoder) (productSeed, error) {
	p := productSeed{Active: true}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			p.Name, err = d.Str()
		case "sku":
			p.SKU, err = d.Str()
		case "shortDescription":
			p.ShortDescription, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		case "active":
			p.Active, err = d.Bool()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "discountPrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			if v, err = decodeDecimal(d); err == nil {
				p.DiscountPrice = decimal.NewNullDecimal(v)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	if p.SKU == "" {
		return p, errors.New("sku is required")
	}
	return p, nil
}

// decodeDecimal accepts both "9.99" and 9.99.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("expected string or number, got %s", d.Next())
	}
	return decimal.NewFromString(raw)
}
