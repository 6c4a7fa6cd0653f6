// Command price-ingest loads customer price lists into the catalog.
//
// Each input is a gzip-compressed CSV file of customer_number,sku,price rows
// with the price in pounds. Files are applied in name order so a later file
// overrides an earlier one; prices set by more than one file are reported.
package main

import (
	"context"
	"flag"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/storage/postgres"
)

type options struct {
	dataDir     string
	pattern     string
	databaseURL string
	capacity    uint
	workers     int
	dryRun      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing price list files")
	flag.StringVar(&opts.pattern, "pattern", "*.csv.gz", "glob matching price list files in data-dir")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.capacity, "capacity", 1_000_000, "expected rows per file, sizes the bloom filters")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent customer writes")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and report without writing")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		lg.Error("Database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Price ingest failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Price ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		return errors.Wrap(err, "list price files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", opts.pattern, opts.dataDir)
	}
	if len(files) > bits.UintSize {
		return errors.Errorf("too many files: %d (max %d)", len(files), bits.UintSize)
	}
	sort.Strings(files)
	lg.Info("Reading price lists", zap.Strings("files", files))

	res, err := readPriceLists(ctx, lg, files, opts.capacity)
	if err != nil {
		return errors.Wrap(err, "read price lists")
	}
	lg.Info("Price lists read",
		zap.Int("customers", len(res.prices)),
		zap.Int("prices", res.prices.rows()),
		zap.Int("skipped", res.skipped),
		zap.Int("conflicts", len(res.conflicts)),
	)
	if len(res.conflicts) > 0 {
		lg.Warn("Prices set by more than one file, later file wins", zap.Int("count", len(res.conflicts)))
	}
	if opts.dryRun {
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return ingest(ctx, lg, postgres.NewCatalogRepository(pool), res.prices, opts.workers)
}

// ingest resolves the price table against the catalog and writes it.
func ingest(ctx context.Context, lg *zap.Logger, catalog Catalog, prices priceTable, workers int) error {
	products, err := catalog.ProductIDsBySKU(ctx)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	customers, err := catalog.CustomerIDsByNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "load customers")
	}

	r := resolve(prices, customers, products)
	if len(r.unknownCustomers) > 0 {
		lg.Warn("Skipping unknown customers", zap.Strings("customer_numbers", r.unknownCustomers))
	}
	if len(r.unknownSKUs) > 0 {
		lg.Warn("Skipping unknown SKUs", zap.Strings("skus", r.unknownSKUs))
	}

	lg.Info("Writing prices", zap.Int("customers", len(r.byCustomer)))
	if err := writePrices(ctx, lg, catalog, r, workers); err != nil {
		return errors.Wrap(err, "write prices")
	}
	return nil
}
