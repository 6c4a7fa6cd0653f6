// Package cart implements the device-local shopping cart: an ordered list of
// product lines with quantities and price snapshots, persisted as a single
// JSON document in an injected key-value Storage.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/galadrinks/storefront/internal/domain/order"
)

// StorageKey is the well-known key the serialized cart lives under.
const StorageKey = "cart"

// Line is one product in the cart. PricePence is snapshotted when the line
// is first added and is what checkout copies into the order item.
type Line struct {
	ProductID  string
	SKU        string
	Name       string
	PricePence int64
	Qty        int
}

// TotalPence is qty * price for this line.
func (l Line) TotalPence() int64 {
	return int64(l.Qty) * l.PricePence
}

// Storage is a synchronous, device-scoped string key-value store.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// LineIndexError is returned when an operation addresses a line that does
// not exist.
type LineIndexError struct {
	Index int
	Len   int
}

func (e *LineIndexError) Error() string {
	return fmt.Sprintf("cart line %d out of range (cart has %d lines)", e.Index, e.Len)
}

// Subtotal sums qty * price_pence over lines.
func Subtotal(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.TotalPence()
	}
	return total
}

func clampQty(qty int) int {
	return min(max(qty, 1), order.MaxQty)
}

func encodeLines(lines []Line) string {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("sku")
		e.Str(l.SKU)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("price_pence")
		e.Int64(l.PricePence)
		e.FieldStart("qty")
		e.Int(l.Qty)
		e.ObjEnd()
	}
	e.ArrEnd()

	return string(e.Bytes())
}

func decodeLines(raw string) ([]Line, error) {
	d := jx.DecodeStr(raw)
	if d.Next() == jx.Null {
		return nil, nil
	}

	var lines []Line
	err := d.Arr(func(d *jx.Decoder) error {
		var l Line
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				l.ProductID, err = d.Str()
			case "sku":
				l.SKU, err = d.Str()
			case "name":
				l.Name, err = d.Str()
			case "price_pence":
				l.PricePence, err = d.Int64()
			case "qty":
				l.Qty, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}

		if l.ProductID == "" {
			return errors.New("line without product_id")
		}
		if l.PricePence < 0 {
			return errors.Errorf("negative price for product %s", l.ProductID)
		}
		l.Qty = clampQty(l.Qty)
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}
