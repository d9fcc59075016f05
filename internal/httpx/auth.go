package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

// Identity is the caller as asserted by the upstream auth service.
type Identity struct {
	UserID string
	Role   orders.Role
}

type ctxKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

var errNoIdentity = errors.New("missing or invalid identity")

// Authenticator verifies HS256 bearer tokens. Tokens are issued elsewhere;
// this service only reads user_id and role.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) parse(header string) (Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, errNoIdentity
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errNoIdentity, err)
	}
	uid, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if uid == "" {
		return Identity{}, fmt.Errorf("%w: user_id claim", errNoIdentity)
	}
	if !orders.Role(role).Valid() {
		return Identity{}, fmt.Errorf("%w: role %q", errNoIdentity, role)
	}
	return Identity{UserID: uid, Role: orders.Role(role)}, nil
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.parse(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// RequireRole runs after Middleware and lets only the given roles through.
func RequireRole(roles ...orders.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, errNoIdentity)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, fmt.Errorf("role %s: %w", id.Role, orders.ErrUnauthorized))
		})
	}
}
