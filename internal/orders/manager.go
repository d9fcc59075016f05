package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StockLedger is the part of the inventory ledger the lifecycle needs.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, amount int) (Reservation, error)
	Release(ctx context.Context, productID string, amount int) (Product, error)
}

type ManagerConfig struct {
	// RestockOnReject releases the order quantity when a farmer rejects it.
	RestockOnReject bool
	// Producer is stamped on published event envelopes.
	Producer string
}

type Manager struct {
	store  OrderStore
	ledger StockLedger
	pub    Publisher
	log    *zap.Logger
	tracer trace.Tracer
	cfg    ManagerConfig
	now    func() time.Time
}

func NewManager(store OrderStore, ledger StockLedger, pub Publisher, log *zap.Logger, cfg ManagerConfig) *Manager {
	if pub == nil {
		pub = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:  store,
		ledger: ledger,
		pub:    pub,
		log:    log,
		tracer: otel.Tracer("github.com/ariefcatur/go-farm-market.git/internal/orders"),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderInput struct {
	BuyerID         string
	ProductID       string
	Quantity        int
	DeliveryAddress DeliveryAddress
	PaymentMethod   PaymentMethod
	Notes           string
}

// Create reserves stock and only then persists the order. If the persist
// fails the reservation is released before returning.
func (m *Manager) Create(ctx context.Context, in CreateOrderInput) (o Order, err error) {
	ctx, span := m.tracer.Start(ctx, "orders.create", trace.WithAttributes(
		attribute.String("product.id", in.ProductID),
		attribute.String("buyer.id", in.BuyerID),
		attribute.Int("order.quantity", in.Quantity),
	))
	defer func() { endSpan(span, err) }()

	if in.Quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}
	method := in.PaymentMethod
	if method == "" {
		method = PaymentCash
	}
	if !method.Valid() {
		return Order{}, invalidInput("payment method %q", method)
	}

	res, err := m.ledger.Reserve(ctx, in.ProductID, in.Quantity)
	if err != nil {
		return Order{}, err
	}

	now := m.now()
	o = Order{
		ID:              uuid.NewString(),
		BuyerID:         in.BuyerID,
		FarmerID:        res.FarmerID,
		ProductID:       res.ProductID,
		Quantity:        res.Quantity,
		UnitPrice:       res.UnitPrice,
		TotalAmount:     res.UnitPrice.Mul(decimal.NewFromInt(int64(res.Quantity))),
		Status:          StatusPending,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		DeliveryAddress: in.DeliveryAddress,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	saved, err := m.store.CreateOrder(ctx, o)
	if err != nil {
		// kompensasi: reservation tidak boleh menggantung
		if _, rerr := m.ledger.Release(context.WithoutCancel(ctx), res.ProductID, res.Quantity); rerr != nil {
			m.log.Error("compensating release failed, stock is under-counted",
				zap.String("product_id", res.ProductID),
				zap.Int("quantity", res.Quantity),
				zap.Error(rerr))
			return Order{}, fmt.Errorf("persist order: %w", errors.Join(err, rerr))
		}
		return Order{}, fmt.Errorf("persist order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", saved.ID))

	m.log.Info("order created",
		zap.String("order_id", saved.ID),
		zap.String("product_id", saved.ProductID),
		zap.String("buyer_id", saved.BuyerID),
		zap.Int("quantity", saved.Quantity),
		zap.String("total_amount", saved.TotalAmount.String()))
	m.publish(ctx, TopicOrderCreated, EventOrderCreated, saved.ID, OrderCreatedPayload{
		OrderID:     saved.ID,
		BuyerID:     saved.BuyerID,
		FarmerID:    saved.FarmerID,
		ProductID:   saved.ProductID,
		Quantity:    saved.Quantity,
		UnitPrice:   saved.UnitPrice,
		TotalAmount: saved.TotalAmount,
	})
	return saved, nil
}

// SetStatus moves an order along the farmer side of the state machine.
func (m *Manager) SetStatus(ctx context.Context, orderID, actorID string, next Status) (o Order, err error) {
	ctx, span := m.tracer.Start(ctx, "orders.set_status", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(next)),
	))
	defer func() { endSpan(span, err) }()

	cur, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if cur.FarmerID != actorID {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrUnauthorized)
	}
	if !CanTransition(cur.Status, next) {
		return Order{}, fmt.Errorf("%s -> %s: %w", cur.Status, next, ErrInvalidTransition)
	}

	now := m.now()
	patch := OrderPatch{Status: &next, UpdatedAt: now}
	if next == StatusDelivered {
		paid := PaymentCompleted
		patch.DeliveredAt = &now
		patch.PaymentStatus = &paid
	}

	var (
		updated   Order
		restocked bool
	)
	if next == StatusRejected && m.cfg.RestockOnReject {
		updated, restocked, err = m.store.ReleaseOrder(ctx, orderID, cur.Status, patch)
	} else {
		updated, err = m.store.UpdateOrder(ctx, orderID, cur.Status, patch)
	}
	if err != nil {
		return Order{}, writeFailed(cur, err)
	}

	m.log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next)),
		zap.Bool("restocked", restocked))
	m.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
		OrderID:       orderID,
		From:          cur.Status,
		To:            next,
		PaymentStatus: updated.PaymentStatus,
		Restocked:     restocked,
	})
	return updated, nil
}

// Cancel returns the order quantity and persists the cancellation in one
// store unit. A failed call leaves both stock and order untouched, so it can
// be retried; of two racing cancels only one restocks.
func (m *Manager) Cancel(ctx context.Context, orderID, actorID string) (o Order, err error) {
	ctx, span := m.tracer.Start(ctx, "orders.cancel", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer func() { endSpan(span, err) }()

	cur, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if cur.BuyerID != actorID {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrUnauthorized)
	}
	if !CanCancel(cur.Status) {
		return Order{}, fmt.Errorf("cannot cancel %s order: %w", cur.Status, ErrInvalidTransition)
	}

	cancelled := StatusCancelled
	updated, restocked, err := m.store.ReleaseOrder(ctx, orderID, StatusPending, OrderPatch{Status: &cancelled, UpdatedAt: m.now()})
	if err != nil {
		return Order{}, writeFailed(cur, err)
	}
	if !restocked {
		m.log.Warn("product gone, skipping restock",
			zap.String("order_id", orderID),
			zap.String("product_id", cur.ProductID))
	}

	m.log.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("product_id", cur.ProductID),
		zap.Int("quantity", cur.Quantity),
		zap.Bool("restocked", restocked))
	m.publish(ctx, TopicOrderCancelled, EventOrderCancelled, orderID, OrderCancelledPayload{
		OrderID:   orderID,
		ProductID: cur.ProductID,
		Quantity:  cur.Quantity,
		Restocked: restocked,
	})
	return updated, nil
}

// Get returns the order to its buyer or farmer only.
func (m *Manager) Get(ctx context.Context, orderID, actorID string) (Order, error) {
	o, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.BuyerID != actorID && o.FarmerID != actorID {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrUnauthorized)
	}
	return o, nil
}

func (m *Manager) ListBuyerOrders(ctx context.Context, buyerID string) ([]Order, error) {
	return m.store.QueryOrders(ctx, OrderFilter{BuyerID: buyerID}, SortNewest, 0)
}

func (m *Manager) ListFarmerOrders(ctx context.Context, farmerID string, status Status) ([]Order, error) {
	f := OrderFilter{FarmerID: farmerID}
	if status != "" {
		f.Statuses = []Status{status}
	}
	return m.store.QueryOrders(ctx, f, SortNewest, 0)
}

// writeFailed maps a lost conditional write. The stored status moved on
// since cur was read, which for the caller is an invalid transition.
func writeFailed(cur Order, err error) error {
	switch {
	case errors.Is(err, ErrStatusChanged):
		return fmt.Errorf("order %s changed concurrently: %w", cur.ID, ErrInvalidTransition)
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("order %s: %w", cur.ID, ErrTransientConflict)
	}
	return err
}

func (m *Manager) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	ev, err := NewEnvelope(eventType, m.cfg.Producer, orderID, payload)
	if err != nil {
		m.log.Warn("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	m.pub.Publish(ctx, topic, ev)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
