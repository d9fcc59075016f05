// Package memstore keeps products and orders in process memory. It backs
// STORE_DRIVER=memory and the package tests.
//
// Product updates are optimistic: the mutation runs on a snapshot outside the
// lock and the write is rejected with orders.ErrConflict if another writer
// bumped the version in between.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]orders.Product
	orders   map[string]orders.Order
	seq      []string // order ids in insertion order
	now      func() time.Time
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products: map[string]orders.Product{},
		orders:   map[string]orders.Order{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateProduct(_ context.Context, p orders.Product) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return orders.Product{}, fmt.Errorf("product %s already exists", p.ID)
	}
	p.Version = 1
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
	}
	return p, nil
}

func (s *Store) UpdateProductAtomic(ctx context.Context, id string, mutate orders.ProductMutation) (orders.Product, error) {
	cur, err := s.GetProduct(ctx, id)
	if err != nil {
		return orders.Product{}, err
	}
	next := cur
	if err := mutate(&next); err != nil {
		return orders.Product{}, err
	}
	if next.AvailableQuantity < 0 {
		return orders.Product{}, &orders.StockError{
			ProductID: id,
			Requested: cur.AvailableQuantity - next.AvailableQuantity,
			Available: cur.AvailableQuantity,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	latest, ok := s.products[id]
	if !ok {
		return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
	}
	if latest.Version != cur.Version {
		return orders.Product{}, orders.ErrConflict
	}
	next.ID, next.OwnerID, next.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now()
	s.products[id] = next
	return next, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func matchProduct(p orders.Product, f orders.ProductFilter) bool {
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, p.Status)
}

func (s *Store) QueryProducts(_ context.Context, f orders.ProductFilter, limit int) ([]orders.Product, error) {
	s.mu.RLock()
	out := make([]orders.Product, 0)
	for _, p := range s.products {
		if matchProduct(p, f) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b orders.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountProducts(_ context.Context, f orders.ProductFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.products {
		if matchProduct(p, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateOrder(_ context.Context, o orders.Order) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return orders.Order{}, fmt.Errorf("order %s already exists", o.ID)
	}
	o.UpdatedAt = o.CreatedAt
	o.Version = 1
	s.orders[o.ID] = o
	s.seq = append(s.seq, o.ID)
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	return o, nil
}

func (s *Store) UpdateOrder(_ context.Context, id string, expect orders.Status, patch orders.OrderPatch) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.expectStatus(id, expect)
	if err != nil {
		return orders.Order{}, err
	}
	return s.applyPatch(o, patch), nil
}

// ReleaseOrder holds the write lock across the stock and order writes. The
// version bump makes any in-flight optimistic product update retry.
func (s *Store) ReleaseOrder(_ context.Context, id string, expect orders.Status, patch orders.OrderPatch) (orders.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.expectStatus(id, expect)
	if err != nil {
		return orders.Order{}, false, err
	}
	p, restocked := s.products[o.ProductID]
	if restocked {
		p.Restock(o.Quantity)
		p.Version++
		p.UpdatedAt = s.now()
		s.products[p.ID] = p
	}
	return s.applyPatch(o, patch), restocked, nil
}

func (s *Store) expectStatus(id string, expect orders.Status) (orders.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	if o.Status != expect {
		return orders.Order{}, fmt.Errorf("order %s no longer %s: %w", id, expect, orders.ErrStatusChanged)
	}
	return o, nil
}

func (s *Store) applyPatch(o orders.Order, patch orders.OrderPatch) orders.Order {
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		o.PaymentStatus = *patch.PaymentStatus
	}
	if patch.DeliveredAt != nil {
		t := *patch.DeliveredAt
		o.DeliveredAt = &t
	}
	o.UpdatedAt = patch.UpdatedAt
	o.Version++
	s.orders[o.ID] = o
	return o
}

func matchOrder(o orders.Order, f orders.OrderFilter) bool {
	if f.BuyerID != "" && o.BuyerID != f.BuyerID {
		return false
	}
	if f.FarmerID != "" && o.FarmerID != f.FarmerID {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, o.Status)
}

func (s *Store) QueryOrders(_ context.Context, f orders.OrderFilter, sort orders.OrderSort, limit int) ([]orders.Order, error) {
	s.mu.RLock()
	out := make([]orders.Order, 0)
	// newest insertion first so equal timestamps keep creation order
	for i := len(s.seq) - 1; i >= 0; i-- {
		if o := s.orders[s.seq[i]]; matchOrder(o, f) {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	if sort == orders.SortOldest {
		slices.Reverse(out)
		slices.SortStableFunc(out, func(a, b orders.Order) int { return a.CreatedAt.Compare(b.CreatedAt) })
	} else {
		slices.SortStableFunc(out, func(a, b orders.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountOrders(_ context.Context, f orders.OrderFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.orders {
		if matchOrder(o, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) SumOrderTotals(_ context.Context, f orders.OrderFilter) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := decimal.Zero
	for _, o := range s.orders {
		if matchOrder(o, f) {
			sum = sum.Add(o.TotalAmount)
		}
	}
	return sum, nil
}
