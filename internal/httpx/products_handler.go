package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
	"github.com/ariefcatur/go-farm-market.git/internal/stats"
)

type ProductService interface {
	Create(ctx context.Context, farmerID string, in orders.ProductInput) (orders.Product, error)
	Get(ctx context.Context, id string) (orders.Product, error)
	Update(ctx context.Context, farmerID, id string, patch orders.ProductPatch) (orders.Product, error)
	Restock(ctx context.Context, farmerID, id string, amount int) (orders.Product, error)
	Delete(ctx context.Context, farmerID, id string) error
	ListByFarmer(ctx context.Context, farmerID string) ([]orders.Product, error)
}

type StatsService interface {
	ForFarmer(ctx context.Context, farmerID, actorID string) (stats.FarmerStats, error)
}

type ProductsHandler struct {
	Products ProductService
	Stats    StatsService
	Log      *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router, auth *Authenticator) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware, RequireRole(orders.RoleFarmer))
			r.Post("/", h.createProduct)
			r.Get("/farmer/my-products", h.myProducts)
			r.Get("/farmer/stats", h.farmerStats)
			r.Put("/{id}", h.updateProduct)
			r.Post("/{id}/restock", h.restock)
			r.Delete("/{id}", h.deleteProduct)
		})
	})
}

type RestockReq struct {
	Quantity int `json:"quantity"`
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Product", p)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var in orders.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Products.Create(r.Context(), id.UserID, in)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, "Product created", p)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var patch orders.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Products.Update(r.Context(), id.UserID, chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Product updated", p)
}

func (h *ProductsHandler) restock(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req RestockReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Products.Restock(r.Context(), id.UserID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Product restocked", p)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.Products.Delete(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Product deleted", nil)
}

func (h *ProductsHandler) myProducts(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	list, err := h.Products.ListByFarmer(r.Context(), id.UserID)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Products", nonNil(list))
}

func (h *ProductsHandler) farmerStats(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	st, err := h.Stats.ForFarmer(r.Context(), id.UserID, id.UserID)
	if err != nil {
		fail(h.Log, w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, "Farmer stats", st)
}
