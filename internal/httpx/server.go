package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns the base router with the shared middleware stack.
// Pass nil auth to leave /api unmounted (health only).
func NewRouter(auth *Authenticator, handlers ...Registrar) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if auth == nil {
		return r
	}
	r.Route("/api", func(api chi.Router) {
		for _, h := range handlers {
			h.Register(api, auth)
		}
	})
	return r
}

// Registrar mounts a handler group under /api.
type Registrar interface {
	Register(r chi.Router, auth *Authenticator)
}
