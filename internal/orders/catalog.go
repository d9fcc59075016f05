package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductLedger adds the non-stock update path used by the catalog.
type ProductLedger interface {
	StockLedger
	Update(ctx context.Context, productID string, mutate ProductMutation) (Product, error)
}

// Catalog manages listings on behalf of their owning farmer.
type Catalog struct {
	store  ProductStore
	ledger ProductLedger
	log    *zap.Logger
	now    func() time.Time
}

func NewCatalog(store ProductStore, ledger ProductLedger, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		store:  store,
		ledger: ledger,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type ProductInput struct {
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Unit        Unit            `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	IsOrganic   bool            `json:"is_organic"`
	HarvestDate *time.Time      `json:"harvest_date,omitempty"`
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalidInput("name is required")
	case !in.Category.Valid():
		return invalidInput("category %q", in.Category)
	case !in.Unit.Valid():
		return invalidInput("unit %q", in.Unit)
	case in.Quantity < 0:
		return fmt.Errorf("%w: quantity must be >= 0", ErrInvalidQuantity)
	}
	return validPrice(in.Price)
}

// Prices are stored as NUMERIC(12,2).
func validPrice(d decimal.Decimal) error {
	if d.IsNegative() {
		return invalidInput("price must be >= 0")
	}
	if !d.Equal(d.Round(2)) {
		return invalidInput("price %s has more than 2 decimal places", d)
	}
	if d.GreaterThanOrEqual(decimal.New(1, 10)) {
		return invalidInput("price %s is too large", d)
	}
	return nil
}

func (c *Catalog) Create(ctx context.Context, farmerID string, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	now := c.now()
	p, err := c.store.CreateProduct(ctx, Product{
		ID:                uuid.NewString(),
		OwnerID:           farmerID,
		Name:              strings.TrimSpace(in.Name),
		Category:          in.Category,
		Description:       in.Description,
		Unit:              in.Unit,
		Price:             in.Price,
		AvailableQuantity: in.Quantity,
		Status:            DeriveStatus(ProductActive, in.Quantity),
		IsOrganic:         in.IsOrganic,
		HarvestDate:       in.HarvestDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Product{}, err
	}
	c.log.Info("product created",
		zap.String("product_id", p.ID),
		zap.String("owner_id", farmerID),
		zap.Int("quantity", p.AvailableQuantity))
	return p, nil
}

// Get is the public product view; each read bumps the view counter.
func (c *Catalog) Get(ctx context.Context, id string) (Product, error) {
	return c.ledger.Update(ctx, id, func(p *Product) error {
		p.Views++
		return nil
	})
}

// ProductPatch: nil = tidak diubah. Quantity sengaja tidak ada di sini.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Unit        *Unit            `json:"unit,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsOrganic   *bool            `json:"is_organic,omitempty"`
	HarvestDate *time.Time       `json:"harvest_date,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

func (c *Catalog) Update(ctx context.Context, farmerID, id string, patch ProductPatch) (Product, error) {
	p, err := c.ledger.Update(ctx, id, func(p *Product) error {
		if p.OwnerID != farmerID {
			return fmt.Errorf("product %s: %w", id, ErrUnauthorized)
		}
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return invalidInput("name is required")
			}
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			if !patch.Category.Valid() {
				return invalidInput("category %q", *patch.Category)
			}
			p.Category = *patch.Category
		}
		if patch.Unit != nil {
			if !patch.Unit.Valid() {
				return invalidInput("unit %q", *patch.Unit)
			}
			p.Unit = *patch.Unit
		}
		if patch.Price != nil {
			if err := validPrice(*patch.Price); err != nil {
				return err
			}
			p.Price = *patch.Price
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.IsOrganic != nil {
			p.IsOrganic = *patch.IsOrganic
		}
		if patch.HarvestDate != nil {
			t := *patch.HarvestDate
			p.HarvestDate = &t
		}
		if patch.Active != nil {
			if *patch.Active {
				p.Status = ProductActive // diturunkan ulang oleh ledger (bisa jadi sold)
			} else {
				p.Status = ProductInactive
			}
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	c.log.Info("product updated", zap.String("product_id", id), zap.String("status", string(p.Status)))
	return p, nil
}

// Restock adds stock through the ledger so sold/active stays derived.
func (c *Catalog) Restock(ctx context.Context, farmerID, id string, amount int) (Product, error) {
	if amount < 1 {
		return Product{}, ErrInvalidQuantity
	}
	p, err := c.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.OwnerID != farmerID {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrUnauthorized)
	}
	return c.ledger.Release(ctx, id, amount)
}

func (c *Catalog) Delete(ctx context.Context, farmerID, id string) error {
	p, err := c.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != farmerID {
		return fmt.Errorf("product %s: %w", id, ErrUnauthorized)
	}
	if err := c.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.log.Info("product deleted", zap.String("product_id", id), zap.String("owner_id", farmerID))
	return nil
}

func (c *Catalog) ListByFarmer(ctx context.Context, farmerID string) ([]Product, error) {
	return c.store.QueryProducts(ctx, ProductFilter{OwnerID: farmerID}, 0)
}
