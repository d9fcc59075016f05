package orders_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
	"github.com/ariefcatur/go-farm-market.git/internal/postgres"
)

// Runs against a real database when POSTGRES_TEST_DSN is set.
func newRepo(t *testing.T) *orders.Repo {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return &orders.Repo{DB: pool}
}

func TestRepo_ProductAndOrderRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	owner := "farmer-" + uuid.NewString()

	p, err := repo.CreateProduct(ctx, orders.Product{
		ID: uuid.NewString(), OwnerID: owner, Name: "Rice", Category: orders.CategoryGrains,
		Unit: "kg", Price: decimal.RequireFromString("42.10"), AvailableQuantity: 5,
		Status: orders.ProductActive, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	p, err = repo.UpdateProductAtomic(ctx, p.ID, func(p *orders.Product) error {
		p.AvailableQuantity -= 5
		p.Status = orders.DeriveStatus(p.Status, p.AvailableQuantity)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, orders.ProductSold, p.Status)
	assert.Equal(t, int64(2), p.Version)

	_, err = repo.UpdateProductAtomic(ctx, p.ID, func(p *orders.Product) error {
		p.AvailableQuantity--
		return nil
	})
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	o, err := repo.CreateOrder(ctx, orders.Order{
		ID: uuid.NewString(), BuyerID: "b", FarmerID: owner, ProductID: p.ID, Quantity: 5,
		UnitPrice: p.Price, TotalAmount: p.Price.Mul(decimal.NewFromInt(5)),
		Status: orders.StatusPending, PaymentMethod: orders.PaymentUPI, PaymentStatus: orders.PaymentPending,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("210.5")))

	accepted := orders.StatusAccepted
	_, err = repo.UpdateOrder(ctx, o.ID, orders.StatusDelivered, orders.OrderPatch{Status: &accepted, UpdatedAt: now})
	assert.ErrorIs(t, err, orders.ErrStatusChanged)
	_, err = repo.UpdateOrder(ctx, uuid.NewString(), orders.StatusPending, orders.OrderPatch{Status: &accepted, UpdatedAt: now})
	assert.ErrorIs(t, err, orders.ErrNotFound)

	o, err = repo.UpdateOrder(ctx, o.ID, orders.StatusPending, orders.OrderPatch{Status: &accepted, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, o.Status)
	assert.Equal(t, int64(2), o.Version)

	sum, err := repo.SumOrderTotals(ctx, orders.OrderFilter{FarmerID: owner, Statuses: []orders.Status{orders.StatusAccepted}})
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("210.5")))

	n, err := repo.CountProducts(ctx, orders.ProductFilter{OwnerID: owner, Statuses: []orders.ProductStatus{orders.ProductSold}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepo_ReleaseOrderRollsBackOnStatusMismatch(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	p, err := repo.CreateProduct(ctx, orders.Product{
		ID: uuid.NewString(), OwnerID: "farmer-" + uuid.NewString(), Name: "Onion", Category: orders.CategoryVegetables,
		Unit: "kg", Price: decimal.RequireFromString("3"), AvailableQuantity: 0,
		Status: orders.ProductSold, CreatedAt: now,
	})
	require.NoError(t, err)
	o, err := repo.CreateOrder(ctx, orders.Order{
		ID: uuid.NewString(), BuyerID: "b", FarmerID: p.OwnerID, ProductID: p.ID, Quantity: 4,
		UnitPrice: p.Price, TotalAmount: p.Price.Mul(decimal.NewFromInt(4)),
		Status: orders.StatusPending, PaymentMethod: orders.PaymentCash, PaymentStatus: orders.PaymentPending,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	cancelled := orders.StatusCancelled
	_, _, err = repo.ReleaseOrder(ctx, o.ID, orders.StatusAccepted, orders.OrderPatch{Status: &cancelled, UpdatedAt: now})
	assert.ErrorIs(t, err, orders.ErrStatusChanged)
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableQuantity)

	o, restocked, err := repo.ReleaseOrder(ctx, o.ID, orders.StatusPending, orders.OrderPatch{Status: &cancelled, UpdatedAt: now})
	require.NoError(t, err)
	assert.True(t, restocked)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	got, err = repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvailableQuantity)
	assert.Equal(t, orders.ProductActive, got.Status)
}
