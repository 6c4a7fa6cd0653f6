package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"math/bits"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// priceRow is one line of a price list: customer_number,sku,price.
type priceRow struct {
	CustomerNumber string
	SKU            string
	Pence          int64
}

// key identifies the price a row sets.
func (r priceRow) key() string {
	return r.CustomerNumber + "\x00" + r.SKU
}

// priceTable maps customer number to SKU to price in pence.
type priceTable map[string]map[string]int64

func (t priceTable) set(r priceRow) {
	m, ok := t[r.CustomerNumber]
	if !ok {
		m = make(map[string]int64)
		t[r.CustomerNumber] = m
	}
	m[r.SKU] = r.Pence
}

func (t priceTable) rows() int {
	n := 0
	for _, m := range t {
		n += len(m)
	}
	return n
}

// parsePrice converts a price in pounds with at most two decimals to pence.
func parsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "£"))
	if err != nil {
		return 0, errors.Wrapf(err, "parse price %q", s)
	}
	if d.IsNegative() {
		return 0, errors.Errorf("negative price %q", s)
	}
	pence := d.Shift(2)
	if !pence.Equal(pence.Truncate(0)) {
		return 0, errors.Errorf("price %q has fractional pence", s)
	}
	return pence.IntPart(), nil
}

// parseRecord parses a CSV record. The header row yields ok=false.
func parseRecord(rec []string) (row priceRow, ok bool, err error) {
	if len(rec) != 3 {
		return priceRow{}, false, errors.Errorf("want 3 fields, got %d", len(rec))
	}
	number, sku := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
	if strings.EqualFold(number, "customer_number") {
		return priceRow{}, false, nil
	}
	if number == "" || sku == "" {
		return priceRow{}, false, errors.New("empty customer number or sku")
	}
	pence, err := parsePrice(rec[2])
	if err != nil {
		return priceRow{}, false, err
	}
	return priceRow{CustomerNumber: number, SKU: sku, Pence: pence}, true, nil
}

// streamGzFile opens a gzip-compressed CSV price list and calls fn for each
// row. Malformed rows are counted and skipped.
func streamGzFile(ctx context.Context, path string, fn func(r priceRow)) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(bufio.NewReader(gz))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	for {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			return skipped, errors.Wrapf(err, "read %s", path)
		}
		row, ok, err := parseRecord(rec)
		if err != nil {
			skipped++
			continue
		}
		if ok {
			fn(row)
		}
	}
}

// fileResult holds what pass 2 found in one file.
type fileResult struct {
	prices priceTable
	// overlaps are keys this file sets that may also be set by another file.
	overlaps map[string]uint
	skipped  int
}

// ingestResult is the merged outcome of reading all files.
type ingestResult struct {
	prices priceTable
	// conflicts are keys set by two or more files, with a bit per file.
	conflicts map[string]uint
	skipped   int
}

// readPriceLists reads every file in two passes. Pass 1 builds one bloom
// filter of price keys per file. Pass 2 parses the prices and tracks keys
// another file may also set; those are confirmed exactly after the merge.
// Later files win on conflict.
func readPriceLists(ctx context.Context, lg *zap.Logger, files []string, capacity uint) (*ingestResult, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count int
			if _, err := streamGzFile(gctx, path, func(r priceRow) {
				filter.AddString(r.key())
				count++
				if count%progressEvery == 0 {
					lg.Info("Pass 1 progress", zap.String("file", path), zap.Int("rows", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			lg.Info("Pass 1 complete", zap.String("file", path), zap.Int("rows", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]fileResult, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			res := fileResult{prices: make(priceTable), overlaps: make(map[string]uint)}
			fileBit := uint(1) << uint(i)
			skipped, err := streamGzFile(gctx, path, func(r priceRow) {
				res.prices.set(r)
				key := r.key()
				for j, f := range filters {
					if j != i && f.TestString(key) {
						res.overlaps[key] |= fileBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "read prices from %s", path)
			}
			res.skipped = skipped
			lg.Info("Pass 2 complete",
				zap.String("file", path),
				zap.Int("prices", res.prices.rows()),
				zap.Int("skipped", skipped),
				zap.Int("candidates", len(res.overlaps)),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ingestResult{prices: make(priceTable), conflicts: make(map[string]uint)}
	merged := make(map[string]uint)
	for _, res := range results {
		for number, m := range res.prices {
			for sku, pence := range m {
				out.prices.set(priceRow{CustomerNumber: number, SKU: sku, Pence: pence})
			}
		}
		for key, mask := range res.overlaps {
			merged[key] |= mask
		}
		out.skipped += res.skipped
	}
	// Bloom positives are candidates only; a real conflict was seen by at
	// least two files.
	for key, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			out.conflicts[key] = mask
		}
	}
	return out, nil
}
