package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/galadrinks/storefront/internal/domain/order"
)

// Item is an order line. Product name and SKU are only sent by the server.
type Item order.Item

func (v Item) Encode(e *jx.Encoder) {
	e.ObjStart()
	if v.OrderID != "" {
		e.FieldStart("order_id")
		e.Str(v.OrderID)
	}
	e.FieldStart("product_id")
	e.Str(v.ProductID)
	e.FieldStart("qty")
	e.Int(v.Qty)
	e.FieldStart("unit_price_pence")
	e.Int64(v.UnitPricePence)
	if v.ProductName != "" {
		e.FieldStart("product_name")
		e.Str(v.ProductName)
	}
	if v.SKU != "" {
		e.FieldStart("sku")
		e.Str(v.SKU)
	}
	e.ObjEnd()
}

func (v *Item) Decode(d *jx.Decoder) error {
	*v = Item{}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			v.OrderID, err = d.Str()
		case "product_id":
			v.ProductID, err = d.Str()
		case "qty":
			v.Qty, err = d.Int()
		case "unit_price_pence":
			v.UnitPricePence, err = d.Int64()
		case "product_name":
			v.ProductName, err = d.Str()
		case "sku":
			v.SKU, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return err
	}
	if v.ProductID == "" {
		return errors.New("item without product_id")
	}
	return nil
}

// Items is the body of a bulk item insert: {"items":[...]}.
type Items []order.Item

func (v Items) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("items")
	encodeItems(e, v)
	e.ObjEnd()
}

func (v *Items) Decode(d *jx.Decoder) error {
	var items []order.Item
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		var err error
		items, err = decodeItems(d)
		return err
	}); err != nil {
		return err
	}
	*v = items
	return nil
}

// Order is an order header with whatever items were loaded.
type Order order.Order

func (v Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(v.ID)
	e.FieldStart("customer_id")
	e.Str(v.CustomerID)
	e.FieldStart("status")
	e.Str(string(v.Status))
	e.FieldStart("created_at")
	encodeTime(e, v.CreatedAt)
	e.FieldStart("items")
	encodeItems(e, v.Items)
	e.ObjEnd()
}

func (v *Order) Decode(d *jx.Decoder) error {
	*v = Order{}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = d.Str()
		case "customer_id":
			v.CustomerID, err = d.Str()
		case "status":
			var s string
			s, err = d.Str()
			v.Status = order.Status(s)
		case "created_at":
			v.CreatedAt, err = decodeTime(d)
		case "items":
			v.Items, err = decodeItems(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return err
	}
	if v.ID == "" {
		return errors.New("order without id")
	}
	return nil
}

// Orders is an order history page.
type Orders []order.Order

func (v Orders) Encode(e *jx.Encoder) {
	e.ArrStart()
	for _, o := range v {
		Order(o).Encode(e)
	}
	e.ArrEnd()
}

func (v *Orders) Decode(d *jx.Decoder) error {
	out := Orders{}
	if err := decodeArr(d, func(d *jx.Decoder) error {
		var o Order
		if err := o.Decode(d); err != nil {
			return err
		}
		out = append(out, order.Order(o))
		return nil
	}); err != nil {
		return err
	}
	*v = out
	return nil
}

func encodeItems(e *jx.Encoder, items []order.Item) {
	e.ArrStart()
	for _, it := range items {
		Item(it).Encode(e)
	}
	e.ArrEnd()
}

func decodeItems(d *jx.Decoder) ([]order.Item, error) {
	items := []order.Item{}
	err := decodeArr(d, func(d *jx.Decoder) error {
		var it Item
		if err := it.Decode(d); err != nil {
			return err
		}
		items = append(items, order.Item(it))
		return nil
	})
	return items, err
}
