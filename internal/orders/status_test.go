package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusAccepted, StatusRejected, StatusDelivered, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusAccepted}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusAccepted, StatusRejected}:  true,
		{StatusAccepted, StatusDelivered}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(StatusPending))
	for _, s := range []Status{StatusAccepted, StatusRejected, StatusDelivered, StatusCancelled} {
		assert.False(t, CanCancel(s), s)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAccepted.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, Status("shipped").Valid())
	assert.False(t, Status("shipped").Terminal())
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		current   ProductStatus
		available int
		want      ProductStatus
	}{
		{"active stays active", ProductActive, 5, ProductActive},
		{"active sells out", ProductActive, 0, ProductSold},
		{"sold restocked", ProductSold, 3, ProductActive},
		{"sold stays sold", ProductSold, 0, ProductSold},
		{"inactive with stock", ProductInactive, 10, ProductInactive},
		{"inactive without stock", ProductInactive, 0, ProductInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.current, tt.available))
		})
	}
}

func TestStockError_MatchesSentinel(t *testing.T) {
	var err error = &StockError{ProductID: "p1", Requested: 6, Available: 4}
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	var se *StockError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 4, se.Available)
	assert.Contains(t, err.Error(), "requested 6, available 4")
}

func TestEnumValidation(t *testing.T) {
	assert.True(t, CategoryVegetables.Valid())
	assert.False(t, Category("Meat").Valid())
	assert.True(t, Unit("kg").Valid())
	assert.False(t, Unit("ton").Valid())
	assert.True(t, PaymentUPI.Valid())
	assert.False(t, PaymentMethod("card").Valid())
	assert.True(t, RoleFarmer.Valid())
	assert.False(t, Role("guest").Valid())
}
