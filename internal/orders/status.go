package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// Transitions set by the farmer. Cancellation is a buyer event and is not
// reachable through CanTransition.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusAccepted: true, StatusRejected: true},
	StatusAccepted:  {StatusRejected: true, StatusDelivered: true},
	StatusRejected:  {},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// CanCancel: buyer hanya boleh cancel selama masih pending.
func CanCancel(from Status) bool {
	return from == StatusPending
}

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductSold     ProductStatus = "sold"
)

// DeriveStatus recomputes a product status after its quantity changed.
// A manual deactivation survives; otherwise sold iff nothing is left.
func DeriveStatus(current ProductStatus, available int) ProductStatus {
	if current == ProductInactive {
		return ProductInactive
	}
	if available == 0 {
		return ProductSold
	}
	return ProductActive
}
