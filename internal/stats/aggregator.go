// Package stats derives farmer dashboard figures from products and orders at
// query time. Nothing is cached and no lock is taken; figures may lag
// concurrent writes slightly.
package stats

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

const RecentActivityLimit = 10

// Source is the read side of the store the aggregator scans.
type Source interface {
	CountProducts(ctx context.Context, f orders.ProductFilter) (int, error)
	CountOrders(ctx context.Context, f orders.OrderFilter) (int, error)
	SumOrderTotals(ctx context.Context, f orders.OrderFilter) (decimal.Decimal, error)
	QueryOrders(ctx context.Context, f orders.OrderFilter, sort orders.OrderSort, limit int) ([]orders.Order, error)
}

type FarmerStats struct {
	ActiveListings int             `json:"active_listings"`
	PendingOrders  int             `json:"pending_orders"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	RecentActivity []orders.Order  `json:"recent_activity"`
}

// SalesStatuses are the order states counted as sales.
var SalesStatuses = []orders.Status{orders.StatusDelivered, orders.StatusAccepted}

type Aggregator struct {
	src Source
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// ForFarmer computes the dashboard of farmerID. Farmers only see their own.
func (a *Aggregator) ForFarmer(ctx context.Context, farmerID, actorID string) (FarmerStats, error) {
	if farmerID != actorID {
		return FarmerStats{}, fmt.Errorf("stats of %s: %w", farmerID, orders.ErrUnauthorized)
	}

	var out FarmerStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.src.CountProducts(ctx, orders.ProductFilter{
			OwnerID:  farmerID,
			Statuses: []orders.ProductStatus{orders.ProductActive},
		})
		out.ActiveListings = n
		return err
	})
	g.Go(func() error {
		n, err := a.src.CountOrders(ctx, orders.OrderFilter{
			FarmerID: farmerID,
			Statuses: []orders.Status{orders.StatusPending},
		})
		out.PendingOrders = n
		return err
	})
	g.Go(func() error {
		sum, err := a.src.SumOrderTotals(ctx, orders.OrderFilter{FarmerID: farmerID, Statuses: SalesStatuses})
		out.TotalSales = sum
		return err
	})
	g.Go(func() error {
		recent, err := a.src.QueryOrders(ctx, orders.OrderFilter{FarmerID: farmerID}, orders.SortNewest, RecentActivityLimit)
		out.RecentActivity = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return FarmerStats{}, fmt.Errorf("farmer stats: %w", err)
	}
	if out.RecentActivity == nil {
		out.RecentActivity = []orders.Order{}
	}
	return out, nil
}
