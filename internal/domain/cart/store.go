package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/domain/product"
)

// Store holds the cart in memory and writes it through to Storage on every
// mutation. A mutation only becomes visible after the write succeeds.
type Store struct {
	storage Storage
	lg      *zap.Logger

	mu    sync.Mutex
	lines []Line
}

// NewStore creates a Store over storage. Call Load before reading.
func NewStore(storage Storage, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{storage: storage, lg: lg}
}

// Load reads the persisted cart. A missing or unparsable document yields an
// empty cart; Load never fails.
func (s *Store) Load(ctx context.Context) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil

	raw, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		s.lg.Debug("No stored cart", zap.Error(err))
		return []Line{}
	}

	lines, err := decodeLines(raw)
	if err != nil {
		s.lg.Warn("Discarding unparsable cart", zap.Error(err))
		return []Line{}
	}

	s.lines = lines
	return slices.Clone(lines)
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return []Line{}
	}
	return slices.Clone(s.lines)
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Subtotal is the cart total in pence.
func (s *Store) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.lines)
}

// Add puts one unit of p in the cart, snapshotting the customer's price on
// first add. It is a no-op returning false when p has no price for this
// customer. A line already at order.MaxQty stays there.
func (s *Store) Add(ctx context.Context, p product.Product) (bool, error) {
	if p.PricePence == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.lines)
	idx := slices.IndexFunc(next, func(l Line) bool { return l.ProductID == p.ID })
	if idx >= 0 {
		next[idx].Qty = clampQty(next[idx].Qty + 1)
	} else {
		next = append(next, Line{
			ProductID:  p.ID,
			SKU:        p.SKU,
			Name:       p.Name,
			PricePence: *p.PricePence,
			Qty:        1,
		})
	}

	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Increment adds one to the quantity of line i, never going above
// order.MaxQty.
func (s *Store) Increment(ctx context.Context, i int) error {
	return s.update(ctx, i, func(l *Line) { l.Qty = clampQty(l.Qty + 1) })
}

// Decrement removes one from the quantity of line i, never going below 1.
func (s *Store) Decrement(ctx context.Context, i int) error {
	return s.update(ctx, i, func(l *Line) { l.Qty = max(1, l.Qty-1) })
}

// SetQty sets the quantity of line i, clamped to 1..order.MaxQty.
func (s *Store) SetQty(ctx context.Context, i, qty int) error {
	return s.update(ctx, i, func(l *Line) { l.Qty = clampQty(qty) })
}

// Remove deletes line i.
func (s *Store) Remove(ctx context.Context, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(i); err != nil {
		return err
	}
	next := slices.Delete(slices.Clone(s.lines), i, i+1)
	return s.commit(ctx, next)
}

// Clear empties the cart and removes the stored document.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	s.lines = nil
	return nil
}

func (s *Store) update(ctx context.Context, i int, fn func(l *Line)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(i); err != nil {
		return err
	}
	next := slices.Clone(s.lines)
	fn(&next[i])
	return s.commit(ctx, next)
}

func (s *Store) checkIndex(i int) error {
	if i < 0 || i >= len(s.lines) {
		return &LineIndexError{Index: i, Len: len(s.lines)}
	}
	return nil
}

// commit persists next and swaps it in. Caller must hold s.mu.
func (s *Store) commit(ctx context.Context, next []Line) error {
	if err := s.storage.Set(ctx, StorageKey, encodeLines(next)); err != nil {
		return errors.Wrap(err, "save cart")
	}
	s.lines = next
	return nil
}
