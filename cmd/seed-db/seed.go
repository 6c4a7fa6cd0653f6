package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/product"
)

// seedCustomer is a customer account with a plaintext password to hash.
type seedCustomer struct {
	CustomerNumber string
	Name           string
	ContactEmail   string
	Password       string
}

// seedPrice is one negotiated price.
type seedPrice struct {
	CustomerNumber string
	SKU            string
	PricePence     int64
}

// catalogFile is the contents of a seed file.
type catalogFile struct {
	Products  []product.Product
	Customers []seedCustomer
	Prices    []seedPrice
}

func (c *catalogFile) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				c.Products = append(c.Products, p)
				return nil
			})
		case "customers":
			return d.Arr(func(d *jx.Decoder) error {
				cu, err := decodeCustomer(d)
				if err != nil {
					return err
				}
				c.Customers = append(c.Customers, cu)
				return nil
			})
		case "prices":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodePrice(d)
				if err != nil {
					return err
				}
				c.Prices = append(c.Prices, p)
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			p.SKU, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "unit":
			p.Unit, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, errors.Wrap(err, "decode product")
	}
	if p.SKU == "" || p.Name == "" {
		return p, errors.New("product needs sku and name")
	}
	return p, nil
}

func decodeCustomer(d *jx.Decoder) (seedCustomer, error) {
	var c seedCustomer
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_number":
			c.CustomerNumber, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "contact_email":
			c.ContactEmail, err = d.Str()
		case "password":
			c.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return c, errors.Wrap(err, "decode customer")
	}
	if c.CustomerNumber == "" || c.ContactEmail == "" || c.Password == "" {
		return c, errors.Errorf("customer %q needs customer_number, contact_email and password", c.CustomerNumber)
	}
	return c, nil
}

func decodePrice(d *jx.Decoder) (seedPrice, error) {
	var p seedPrice
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_number":
			p.CustomerNumber, err = d.Str()
		case "sku":
			p.SKU, err = d.Str()
		case "price_pence":
			p.PricePence, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, errors.Wrap(err, "decode price")
	}
	if p.PricePence < 0 {
		return p, errors.Errorf("negative price for %s/%s", p.CustomerNumber, p.SKU)
	}
	return p, nil
}

// parseCatalog decodes a seed file.
func parseCatalog(data []byte) (*catalogFile, error) {
	var c catalogFile
	if err := c.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	return &c, nil
}

// Catalog is the part of the catalog repository seeding writes through.
type Catalog interface {
	UpsertProduct(ctx context.Context, p product.Product) (string, error)
	UpsertCustomer(ctx context.Context, c auth.Customer) (string, error)
	SetPrices(ctx context.Context, customerID string, prices map[string]int64) error
}

// seed upserts products and customers, then each customer's prices. Prices
// must name a product and customer from the same file.
func seed(ctx context.Context, lg *zap.Logger, catalog Catalog, c *catalogFile, hash func(string) (string, error)) error {
	products := make(map[string]string, len(c.Products))
	for _, p := range c.Products {
		id, err := catalog.UpsertProduct(ctx, p)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}
		products[p.SKU] = id
		lg.Info("Upserted product", zap.String("sku", p.SKU), zap.String("id", id))
	}

	customers := make(map[string]string, len(c.Customers))
	for _, cu := range c.Customers {
		h, err := hash(cu.Password)
		if err != nil {
			return errors.Wrapf(err, "hash password for %s", cu.CustomerNumber)
		}
		id, err := catalog.UpsertCustomer(ctx, auth.Customer{
			CustomerNumber: cu.CustomerNumber,
			Name:           cu.Name,
			ContactEmail:   cu.ContactEmail,
			PasswordHash:   h,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert customer %s", cu.CustomerNumber)
		}
		customers[cu.CustomerNumber] = id
		lg.Info("Upserted customer", zap.String("customer_number", cu.CustomerNumber), zap.String("id", id))
	}

	byCustomer := make(map[string]map[string]int64)
	for _, p := range c.Prices {
		customerID, ok := customers[p.CustomerNumber]
		if !ok {
			return errors.Errorf("price for unknown customer %q", p.CustomerNumber)
		}
		productID, ok := products[p.SKU]
		if !ok {
			return errors.Errorf("price for unknown sku %q", p.SKU)
		}
		m, ok := byCustomer[customerID]
		if !ok {
			m = make(map[string]int64)
			byCustomer[customerID] = m
		}
		m[productID] = p.PricePence
	}
	for customerID, prices := range byCustomer {
		if err := catalog.SetPrices(ctx, customerID, prices); err != nil {
			return errors.Wrapf(err, "set prices for %s", customerID)
		}
		lg.Info("Set prices", zap.String("customer_id", customerID), zap.Int("count", len(prices)))
	}
	return nil
}
