package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleFarmer Role = "farmer"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleFarmer || r == RoleAdmin
}

type Category string

const (
	CategoryVegetables Category = "Vegetables"
	CategoryFruits     Category = "Fruits"
	CategoryGrains     Category = "Grains"
	CategoryPulses     Category = "Pulses"
	CategoryDairy      Category = "Dairy"
	CategoryPoultry    Category = "Poultry"
	CategoryOther      Category = "Other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryVegetables, CategoryFruits, CategoryGrains, CategoryPulses,
		CategoryDairy, CategoryPoultry, CategoryOther:
		return true
	}
	return false
}

type Unit string

const (
	UnitKg      Unit = "kg"
	UnitGram    Unit = "gram"
	UnitLitre   Unit = "litre"
	UnitPiece   Unit = "piece"
	UnitDozen   Unit = "dozen"
	UnitQuintal Unit = "quintal"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitKg, UnitGram, UnitLitre, UnitPiece, UnitDozen, UnitQuintal:
		return true
	}
	return false
}

type Product struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"owner_id"`
	Name              string          `json:"name"`
	Category          Category        `json:"category"`
	Description       string          `json:"description"`
	Unit              Unit            `json:"unit"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	Status            ProductStatus   `json:"status"` // lihat status.go, diturunkan dari AvailableQuantity
	IsOrganic         bool            `json:"is_organic"`
	HarvestDate       *time.Time      `json:"harvest_date,omitempty"`
	Views             int64           `json:"views"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Restock puts amount units back and re-derives the listing status.
func (p *Product) Restock(amount int) {
	p.AvailableQuantity += amount
	p.Status = DeriveStatus(p.Status, p.AvailableQuantity)
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
	PaymentUPI    PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentOnline || m == PaymentUPI
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type DeliveryAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

type Order struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	FarmerID        string          `json:"farmer_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          Status          `json:"status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	Notes           string          `json:"notes,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Reservation is the result of a successful ledger reserve. UnitPrice and
// FarmerID come from the same product read that passed the stock check.
type Reservation struct {
	ProductID string
	FarmerID  string
	Quantity  int
	UnitPrice decimal.Decimal
	Remaining int
}
