package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/galadrinks/storefront/internal/domain/product"
)

// Product is a catalog entry with the caller's price.
type Product product.Product

func (v Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(v.ID)
	e.FieldStart("sku")
	e.Str(v.SKU)
	e.FieldStart("name")
	e.Str(v.Name)
	e.FieldStart("description")
	e.Str(v.Description)
	e.FieldStart("category")
	e.Str(v.Category)
	e.FieldStart("unit")
	e.Str(v.Unit)
	e.FieldStart("price_pence")
	if v.PricePence != nil {
		e.Int64(*v.PricePence)
	} else {
		e.Null()
	}
	e.ObjEnd()
}

func (v *Product) Decode(d *jx.Decoder) error {
	*v = Product{}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = d.Str()
		case "sku":
			v.SKU, err = d.Str()
		case "name":
			v.Name, err = d.Str()
		case "description":
			v.Description, err = d.Str()
		case "category":
			v.Category, err = d.Str()
		case "unit":
			v.Unit, err = d.Str()
		case "price_pence":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var p int64
			if p, err = d.Int64(); err == nil {
				v.PricePence = &p
			}
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return err
	}
	if v.ID == "" {
		return errors.New("product without id")
	}
	return nil
}

// Products is a catalog listing.
type Products []product.Product

func (v Products) Encode(e *jx.Encoder) {
	e.ArrStart()
	for _, p := range v {
		Product(p).Encode(e)
	}
	e.ArrEnd()
}

func (v *Products) Decode(d *jx.Decoder) error {
	out := Products{}
	if err := decodeArr(d, func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return err
		}
		out = append(out, product.Product(p))
		return nil
	}); err != nil {
		return err
	}
	*v = out
	return nil
}
