package orders_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

func TestCatalog_CreateValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	valid := orders.ProductInput{
		Name:     "Milk",
		Category: orders.CategoryDairy,
		Unit:     "litre",
		Price:    decimal.NewFromInt(50),
		Quantity: 0,
	}

	p, err := f.catalog.Create(ctx, farmer, valid)
	require.NoError(t, err)
	assert.Equal(t, orders.ProductSold, p.Status, "zero quantity listing starts sold")

	tests := []struct {
		name   string
		mutate func(in *orders.ProductInput)
		want   error
	}{
		{"blank name", func(in *orders.ProductInput) { in.Name = "  " }, orders.ErrInvalidInput},
		{"unknown category", func(in *orders.ProductInput) { in.Category = "Meat" }, orders.ErrInvalidInput},
		{"unknown unit", func(in *orders.ProductInput) { in.Unit = "ton" }, orders.ErrInvalidInput},
		{"negative price", func(in *orders.ProductInput) { in.Price = decimal.NewFromInt(-1) }, orders.ErrInvalidInput},
		{"sub-cent price", func(in *orders.ProductInput) { in.Price = decimal.RequireFromString("10.125") }, orders.ErrInvalidInput},
		{"price overflows column", func(in *orders.ProductInput) { in.Price = decimal.RequireFromString("10000000000") }, orders.ErrInvalidInput},
		{"negative quantity", func(in *orders.ProductInput) { in.Quantity = -2 }, orders.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.catalog.Create(ctx, farmer, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCatalog_GetCountsViews(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, 5, "1")

	for i := 0; i < 3; i++ {
		_, err := f.catalog.Get(context.Background(), p.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), f.stock(t, p.ID).Views)

	_, err := f.catalog.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestCatalog_UpdateOwnerOnly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, 5, "1")
	name := "Durum wheat"

	_, err := f.catalog.Update(ctx, "farmer-2", p.ID, orders.ProductPatch{Name: &name})
	assert.ErrorIs(t, err, orders.ErrUnauthorized)
	assert.Equal(t, "Wheat", f.stock(t, p.ID).Name)

	got, err := f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, 5, got.AvailableQuantity)

	bad := orders.Unit("ton")
	_, err = f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Unit: &bad})
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	fine := decimal.RequireFromString("3.333")
	_, err = f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Price: &fine})
	assert.ErrorIs(t, err, orders.ErrInvalidInput)
	assert.True(t, f.stock(t, p.ID).Price.Equal(decimal.NewFromInt(1)))

	trailing := decimal.RequireFromString("3.500")
	got, err = f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Price: &trailing})
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("3.5")))
}

func TestCatalog_DeactivateBlocksOrders(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, 5, "1")
	off, on := false, true

	got, err := f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Active: &off})
	require.NoError(t, err)
	assert.Equal(t, orders.ProductInactive, got.Status)

	_, err = f.manager.Create(ctx, orders.CreateOrderInput{BuyerID: "b", ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, orders.ErrProductUnavailable)

	got, err = f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Active: &on})
	require.NoError(t, err)
	assert.Equal(t, orders.ProductActive, got.Status)
}

func TestCatalog_ReactivateSoldOut(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, 0, "1")
	off, on := false, true

	_, err := f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Active: &off})
	require.NoError(t, err)
	got, err := f.catalog.Update(ctx, farmer, p.ID, orders.ProductPatch{Active: &on})
	require.NoError(t, err)
	assert.Equal(t, orders.ProductSold, got.Status)
}

func TestCatalog_Restock(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, 2, "1")
	f.order(t, "buyer-a", p.ID, 2)
	assert.Equal(t, orders.ProductSold, f.stock(t, p.ID).Status)

	_, err := f.catalog.Restock(ctx, "farmer-2", p.ID, 5)
	assert.ErrorIs(t, err, orders.ErrUnauthorized)
	_, err = f.catalog.Restock(ctx, farmer, p.ID, 0)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	got, err := f.catalog.Restock(ctx, farmer, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AvailableQuantity)
	assert.Equal(t, orders.ProductActive, got.Status)
}

func TestCatalog_DeleteAndList(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a := f.product(t, 1, "1")
	b := f.product(t, 1, "1")

	assert.ErrorIs(t, f.catalog.Delete(ctx, "farmer-2", a.ID), orders.ErrUnauthorized)
	require.NoError(t, f.catalog.Delete(ctx, farmer, a.ID))
	assert.ErrorIs(t, f.catalog.Delete(ctx, farmer, a.ID), orders.ErrNotFound)

	list, err := f.catalog.ListByFarmer(ctx, farmer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	none, err := f.catalog.ListByFarmer(ctx, "farmer-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
