package main

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Catalog is the part of the catalog repository the ingest writes through.
type Catalog interface {
	ProductIDsBySKU(ctx context.Context) (map[string]string, error)
	CustomerIDsByNumber(ctx context.Context) (map[string]string, error)
	SetPrices(ctx context.Context, customerID string, prices map[string]int64) error
}

// resolved is a price table keyed by database ids, ready to write.
type resolved struct {
	byCustomer       map[string]map[string]int64
	unknownCustomers []string
	unknownSKUs      []string
}

// resolve maps customer numbers and SKUs to ids. Rows naming an unknown
// customer or SKU are dropped and reported.
func resolve(prices priceTable, customers, products map[string]string) resolved {
	out := resolved{byCustomer: make(map[string]map[string]int64)}
	missingSKU := make(map[string]struct{})
	for number, m := range prices {
		customerID, ok := customers[number]
		if !ok {
			out.unknownCustomers = append(out.unknownCustomers, number)
			continue
		}
		for sku, pence := range m {
			productID, ok := products[sku]
			if !ok {
				missingSKU[sku] = struct{}{}
				continue
			}
			ids, ok := out.byCustomer[customerID]
			if !ok {
				ids = make(map[string]int64)
				out.byCustomer[customerID] = ids
			}
			ids[productID] = pence
		}
	}
	for sku := range missingSKU {
		out.unknownSKUs = append(out.unknownSKUs, sku)
	}
	sort.Strings(out.unknownCustomers)
	sort.Strings(out.unknownSKUs)
	return out
}

// writePrices upserts every customer's prices with bounded concurrency.
func writePrices(ctx context.Context, lg *zap.Logger, catalog Catalog, r resolved, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for customerID, prices := range r.byCustomer {
		g.Go(func() error {
			if err := catalog.SetPrices(gctx, customerID, prices); err != nil {
				return errors.Wrapf(err, "set prices for %s", customerID)
			}
			lg.Debug("Prices written", zap.String("customer_id", customerID), zap.Int("count", len(prices)))
			return nil
		})
	}
	return g.Wait()
}
