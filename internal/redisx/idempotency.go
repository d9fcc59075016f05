package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// inFlight marks a key whose create has been claimed but not finished yet.
const inFlight = "in-flight"

// forgetClaim deletes KEYS[1] only while it still holds the in-flight marker.
var forgetClaim = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Idempotency maps a buyer's Idempotency-Key to the order it created. A key
// is claimed with SETNX before the create runs, so concurrent requests with
// the same key cannot both reserve stock.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency {
	return &Idempotency{rdb: rdb}
}

// Claim takes the key for a new create. When the key is already taken it
// returns the remembered order id, or "" while the first request is still
// running.
func (i *Idempotency) Claim(ctx context.Context, buyerID, key string) (orderID string, claimed bool, err error) {
	k := IdemOrderCreateKey(buyerID, key)
	ok, err := i.rdb.SetNX(ctx, k, inFlight, TTLIdempotencyClaim).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return "", true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) || v == inFlight {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency claim: %w", err)
	}
	return v, false, nil
}

// Remember replaces the claim with the created order id.
func (i *Idempotency) Remember(ctx context.Context, buyerID, key, orderID string) error {
	if err := i.rdb.Set(ctx, IdemOrderCreateKey(buyerID, key), orderID, TTLIdempotency).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

// Forget drops an unfinished claim so the request can be retried.
func (i *Idempotency) Forget(ctx context.Context, buyerID, key string) error {
	if err := forgetClaim.Run(ctx, i.rdb, []string{IdemOrderCreateKey(buyerID, key)}, inFlight).Err(); err != nil {
		return fmt.Errorf("idempotency forget: %w", err)
	}
	return nil
}
