package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

type OrderService interface {
	Create(ctx context.Context, in orders.CreateOrderInput) (orders.Order, error)
	SetStatus(ctx context.Context, orderID, actorID string, next orders.Status) (orders.Order, error)
	Cancel(ctx context.Context, orderID, actorID string) (orders.Order, error)
	Get(ctx context.Context, orderID, actorID string) (orders.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]orders.Order, error)
	ListFarmerOrders(ctx context.Context, farmerID string, status orders.Status) ([]orders.Order, error)
}

// IdempotencyStore remembers which order an Idempotency-Key produced. Claim
// returns claimed=true only to the one request allowed to create; the others
// get the finished order id, or "" while it is still in flight.
type IdempotencyStore interface {
	Claim(ctx context.Context, buyerID, key string) (orderID string, claimed bool, err error)
	Remember(ctx context.Context, buyerID, key, orderID string) error
	Forget(ctx context.Context, buyerID, key string) error
}

const HeaderIdempotencyKey = "Idempotency-Key"

var errRequestInFlight = errors.New("a request with this Idempotency-Key is still in progress")

type OrdersHandler struct {
	Orders OrderService
	Idem   IdempotencyStore // nil = header diabaikan
	Log    *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router, auth *Authenticator) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.With(RequireRole(orders.RoleBuyer)).Post("/", h.createOrder)
		r.Get("/my-orders", h.myOrders)
		r.With(RequireRole(orders.RoleFarmer)).Get("/farmer/orders", h.farmerOrders)
		r.Get("/{id}", h.getOrder)
		r.With(RequireRole(orders.RoleFarmer)).Put("/{id}/status", h.setStatus)
		r.Put("/{id}/cancel", h.cancel)
	})
}

type CreateOrderReq struct {
	ProductID       string                 `json:"product_id"`
	Quantity        int                    `json:"quantity"`
	DeliveryAddress orders.DeliveryAddress `json:"delivery_address"`
	PaymentMethod   orders.PaymentMethod   `json:"payment_method"`
	Notes           string                 `json:"notes"`
}

type CreateOrderResp struct {
	Order      orders.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

type SetStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req CreateOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeError(w, r, fmt.Errorf("%w: product_id is required", errBadRequest))
		return
	}
	ctx := r.Context()
	log := h.logger()

	idemKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	claimed := false
	if h.Idem != nil && idemKey != "" {
		orderID, ok, err := h.Idem.Claim(ctx, id.UserID, idemKey)
		switch {
		case err != nil:
			// Redis cuma shortcut; kalau gagal, lanjut buat order biasa
			log.Warn("idempotency claim", zap.Error(err))
		case orderID != "":
			o, err := h.Orders.Get(ctx, orderID, id.UserID)
			if err != nil {
				fail(log, w, r, err)
				return
			}
			writeOK(w, r, http.StatusOK, "Order already placed", CreateOrderResp{Order: o, Idempotent: true})
			return
		case !ok:
			writeError(w, r, errRequestInFlight)
			return
		}
		claimed = ok
	}

	o, err := h.Orders.Create(ctx, orders.CreateOrderInput{
		BuyerID:         id.UserID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		if claimed {
			if ferr := h.Idem.Forget(context.WithoutCancel(ctx), id.UserID, idemKey); ferr != nil {
				log.Warn("idempotency forget", zap.Error(ferr))
			}
		}
		fail(log, w, r, err)
		return
	}
	if claimed {
		if err := h.Idem.Remember(context.WithoutCancel(ctx), id.UserID, idemKey, o.ID); err != nil {
			log.Warn("idempotency remember", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	writeOK(w, r, http.StatusCreated, "Order placed", CreateOrderResp{Order: o})
}

func (h *OrdersHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	list, err := h.Orders.ListBuyerOrders(r.Context(), id.UserID)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Orders", nonNil(list))
}

func (h *OrdersHandler) farmerOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, fmt.Errorf("%w: status %q", errBadRequest, status))
		return
	}
	list, err := h.Orders.ListFarmerOrders(r.Context(), id.UserID, status)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Orders", nonNil(list))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Order", o)
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req SetStatusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, fmt.Errorf("%w: status %q", errBadRequest, req.Status))
		return
	}
	o, err := h.Orders.SetStatus(r.Context(), chi.URLParam(r, "id"), id.UserID, req.Status)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Order status updated", o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	o, err := h.Orders.Cancel(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Order cancelled", o)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
