package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductMutation edits a product inside the store's atomic unit. Returning
// an error aborts the update and leaves the stored record untouched.
type ProductMutation func(p *Product) error

type ProductFilter struct {
	OwnerID  string
	Statuses []ProductStatus
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	// UpdateProductAtomic applies mutate to the current record and persists
	// the result as one indivisible step with respect to other updates of
	// the same product. Version and UpdatedAt are maintained by the store.
	UpdateProductAtomic(ctx context.Context, id string, mutate ProductMutation) (Product, error)
	DeleteProduct(ctx context.Context, id string) error
	QueryProducts(ctx context.Context, f ProductFilter, limit int) ([]Product, error)
	CountProducts(ctx context.Context, f ProductFilter) (int, error)
}

type OrderFilter struct {
	BuyerID  string
	FarmerID string
	Statuses []Status
}

type OrderSort string

const (
	SortNewest OrderSort = "created_at_desc"
	SortOldest OrderSort = "created_at_asc"
)

// OrderPatch lists the mutable order fields. Nil means unchanged.
type OrderPatch struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	DeliveredAt   *time.Time
	UpdatedAt     time.Time
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	// UpdateOrder applies patch only while the stored status equals expect,
	// otherwise it fails with ErrStatusChanged. Version is bumped by the store.
	UpdateOrder(ctx context.Context, id string, expect Status, patch OrderPatch) (Order, error)
	// ReleaseOrder is UpdateOrder plus returning the order quantity to its
	// product, committed together or not at all. The stock is written first
	// inside the unit. A deleted product is skipped and restocked is false.
	ReleaseOrder(ctx context.Context, id string, expect Status, patch OrderPatch) (o Order, restocked bool, err error)
	QueryOrders(ctx context.Context, f OrderFilter, sort OrderSort, limit int) ([]Order, error)
	CountOrders(ctx context.Context, f OrderFilter) (int, error)
	SumOrderTotals(ctx context.Context, f OrderFilter) (decimal.Decimal, error)
}

type Store interface {
	ProductStore
	OrderStore
}
