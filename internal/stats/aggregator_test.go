package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-farm-market.git/internal/memstore"
	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

func seed(t *testing.T, s *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	products := []struct {
		id     string
		owner  string
		status orders.ProductStatus
	}{
		{"p1", "f1", orders.ProductActive},
		{"p2", "f1", orders.ProductActive},
		{"p3", "f1", orders.ProductSold},
		{"p4", "f1", orders.ProductInactive},
		{"p5", "f2", orders.ProductActive},
	}
	for _, p := range products {
		_, err := s.CreateProduct(ctx, orders.Product{ID: p.id, OwnerID: p.owner, Status: p.status, CreatedAt: base})
		require.NoError(t, err)
	}

	statuses := []orders.Status{
		orders.StatusPending, orders.StatusPending, orders.StatusAccepted, orders.StatusDelivered,
		orders.StatusRejected, orders.StatusCancelled, orders.StatusDelivered, orders.StatusPending,
		orders.StatusAccepted, orders.StatusPending, orders.StatusPending, orders.StatusPending,
	}
	for i, st := range statuses {
		_, err := s.CreateOrder(ctx, orders.Order{
			ID:          fmt.Sprintf("o%02d", i),
			FarmerID:    "f1",
			BuyerID:     "b1",
			ProductID:   "p1",
			Quantity:    1,
			TotalAmount: decimal.NewFromInt(int64(10 * (i + 1))),
			Status:      st,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := s.CreateOrder(ctx, orders.Order{
		ID: "other", FarmerID: "f2", Status: orders.StatusDelivered,
		TotalAmount: decimal.NewFromInt(1000), CreatedAt: base,
	})
	require.NoError(t, err)
}

func TestAggregator_ForFarmer(t *testing.T) {
	s := memstore.New()
	seed(t, s)

	st, err := NewAggregator(s).ForFarmer(context.Background(), "f1", "f1")
	require.NoError(t, err)

	assert.Equal(t, 2, st.ActiveListings)
	assert.Equal(t, 6, st.PendingOrders)
	// accepted: o02 (30), o08 (90); delivered: o03 (40), o06 (70)
	assert.True(t, st.TotalSales.Equal(decimal.NewFromInt(230)), st.TotalSales.String())

	require.Len(t, st.RecentActivity, RecentActivityLimit)
	assert.Equal(t, "o11", st.RecentActivity[0].ID)
	assert.Equal(t, "o02", st.RecentActivity[9].ID)
	for _, o := range st.RecentActivity {
		assert.Equal(t, "f1", o.FarmerID)
	}
}

func TestAggregator_EmptyFarmer(t *testing.T) {
	st, err := NewAggregator(memstore.New()).ForFarmer(context.Background(), "f9", "f9")
	require.NoError(t, err)
	assert.Zero(t, st.ActiveListings)
	assert.Zero(t, st.PendingOrders)
	assert.True(t, st.TotalSales.IsZero())
	assert.NotNil(t, st.RecentActivity)
	assert.Empty(t, st.RecentActivity)
}

func TestAggregator_OtherFarmerForbidden(t *testing.T) {
	_, err := NewAggregator(memstore.New()).ForFarmer(context.Background(), "f1", "f2")
	assert.ErrorIs(t, err, orders.ErrUnauthorized)
}
