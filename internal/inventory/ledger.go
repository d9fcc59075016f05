package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 10 * time.Millisecond
)

// Ledger owns available quantity. Every reserve/release is a single call to
// the store's atomic update, so the stock check and the decrement are never
// separated. Store conflicts are retried with backoff up to maxAttempts.
type Ledger struct {
	store       orders.ProductStore
	log         *zap.Logger
	tracer      trace.Tracer
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Ledger)

func WithLogger(l *zap.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.log = l
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(led *Ledger) {
		if n > 0 {
			led.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(led *Ledger) {
		if d > 0 {
			led.backoff = d
		}
	}
}

func NewLedger(store orders.ProductStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		log:         zap.NewNop(),
		tracer:      otel.Tracer("github.com/ariefcatur/go-farm-market.git/internal/inventory"),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Reserve takes amount units off the product. Price and owner in the
// returned reservation come from the same read that passed the stock check.
func (l *Ledger) Reserve(ctx context.Context, productID string, amount int) (orders.Reservation, error) {
	if amount < 1 {
		return orders.Reservation{}, orders.ErrInvalidQuantity
	}
	ctx, span := l.tracer.Start(ctx, "inventory.reserve", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("inventory.amount", amount),
	))
	defer span.End()

	var res orders.Reservation
	p, err := l.apply(ctx, productID, func(p *orders.Product) error {
		if p.Status == orders.ProductInactive {
			return fmt.Errorf("product %s: %w", p.ID, orders.ErrProductUnavailable)
		}
		if p.AvailableQuantity < amount {
			return &orders.StockError{ProductID: p.ID, Requested: amount, Available: p.AvailableQuantity}
		}
		p.AvailableQuantity -= amount
		p.Status = orders.DeriveStatus(p.Status, p.AvailableQuantity)
		res = orders.Reservation{
			ProductID: p.ID,
			FarmerID:  p.OwnerID,
			Quantity:  amount,
			UnitPrice: p.Price,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return orders.Reservation{}, err
	}
	res.Remaining = p.AvailableQuantity
	span.SetAttributes(attribute.Int("inventory.remaining", p.AvailableQuantity))
	l.log.Debug("stock reserved",
		zap.String("product_id", productID),
		zap.Int("amount", amount),
		zap.Int("remaining", p.AvailableQuantity))
	return res, nil
}

// Release puts amount units back. Calling it at most once per reservation is
// the caller's job; order cancellation goes through OrderStore.ReleaseOrder
// instead, which ties the release to the status write.
func (l *Ledger) Release(ctx context.Context, productID string, amount int) (orders.Product, error) {
	if amount < 1 {
		return orders.Product{}, orders.ErrInvalidQuantity
	}
	ctx, span := l.tracer.Start(ctx, "inventory.release", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("inventory.amount", amount),
	))
	defer span.End()

	p, err := l.apply(ctx, productID, func(p *orders.Product) error {
		p.Restock(amount)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return orders.Product{}, err
	}
	span.SetAttributes(attribute.Int("inventory.remaining", p.AvailableQuantity))
	l.log.Debug("stock released",
		zap.String("product_id", productID),
		zap.Int("amount", amount),
		zap.Int("remaining", p.AvailableQuantity))
	return p, nil
}

// Update applies a non-stock edit (listing fields, activation, view counter)
// through the same atomic primitive. The mutation may not touch quantity;
// status is re-derived afterwards.
func (l *Ledger) Update(ctx context.Context, productID string, mutate orders.ProductMutation) (orders.Product, error) {
	return l.apply(ctx, productID, func(p *orders.Product) error {
		qty := p.AvailableQuantity
		if err := mutate(p); err != nil {
			return err
		}
		if p.AvailableQuantity != qty {
			return fmt.Errorf("%w: quantity changes go through reserve/release", orders.ErrInvalidInput)
		}
		p.Status = orders.DeriveStatus(p.Status, p.AvailableQuantity)
		return nil
	})
}

func (l *Ledger) apply(ctx context.Context, productID string, mutate orders.ProductMutation) (orders.Product, error) {
	var (
		out      orders.Product
		attempts int
	)
	op := func() error {
		attempts++
		p, err := l.store.UpdateProductAtomic(ctx, productID, mutate)
		switch {
		case err == nil:
			out = p
			return nil
		case errors.Is(err, orders.ErrConflict):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.backoff
	b.MaxInterval = 20 * l.backoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.maxAttempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		l.log.Debug("stock update conflict, retrying",
			zap.String("product_id", productID),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait))
	})
	if err == nil {
		return out, nil
	}
	if errors.Is(err, orders.ErrConflict) {
		l.log.Warn("stock update retries exhausted",
			zap.String("product_id", productID),
			zap.Int("attempts", attempts))
		return orders.Product{}, fmt.Errorf("product %s after %d attempts: %w", productID, attempts, orders.ErrTransientConflict)
	}
	return orders.Product{}, err
}
