package redisx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-farm-market.git/internal/memstore"
	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIdempotency(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	idem := NewIdempotency(rdb)

	id, claimed, err := idem.Claim(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, id)
	assert.Equal(t, TTLIdempotencyClaim, mr.TTL("idem:order:create:buyer-1:k1"))

	// second request while the first is still creating
	id, claimed, err = idem.Claim(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, id)

	require.NoError(t, idem.Remember(ctx, "buyer-1", "k1", "order-9"))
	id, claimed, err = idem.Claim(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "order-9", id)

	// a finished key survives Forget
	require.NoError(t, idem.Forget(ctx, "buyer-1", "k1"))
	assert.True(t, mr.Exists("idem:order:create:buyer-1:k1"))

	// keys are scoped per buyer
	_, claimed, err = idem.Claim(ctx, "buyer-2", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.Equal(t, TTLIdempotency, mr.TTL("idem:order:create:buyer-1:k1"))
	mr.FastForward(TTLIdempotency + time.Second)
	_, claimed, err = idem.Claim(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotency_ForgetReleasesClaim(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	idem := NewIdempotency(rdb)

	_, claimed, err := idem.Claim(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, idem.Forget(ctx, "buyer-1", "k1"))

	_, claimed, err = idem.Claim(ctx, "buyer-1", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotency_ConcurrentClaimHasOneWinner(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	idem := NewIdempotency(rdb)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, claimed, err := idem.Claim(ctx, "buyer-1", "same"); err == nil && claimed {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestCachedOrderStore(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	inner := memstore.New()
	_, err := inner.CreateOrder(ctx, orders.Order{
		ID: "o1", BuyerID: "b", FarmerID: "f", Status: orders.StatusPending,
		TotalAmount: decimal.RequireFromString("12.50"), CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	cache := NewCachedOrderStore(inner, rdb, nil)

	o, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.True(t, mr.Exists("order:o1"))
	assert.Equal(t, TTLOrderCache, mr.TTL("order:o1"))

	cached, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, cached.TotalAmount.Equal(decimal.RequireFromString("12.5")))

	accepted := orders.StatusAccepted
	_, err = cache.UpdateOrder(ctx, "o1", orders.StatusPending, orders.OrderPatch{Status: &accepted, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "2", mr.HGet("order:o1", "v"), "write goes through to the cache")

	o, err = cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, o.Status)

	_, err = cache.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

// racingOrderStore runs hook once, between reading an order and returning
// it, the way a write from another request can land during a cache fill.
type racingOrderStore struct {
	orders.OrderStore
	hook func()
}

func (s *racingOrderStore) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := s.OrderStore.GetOrder(ctx, id)
	if h := s.hook; h != nil {
		s.hook = nil
		h()
	}
	return o, err
}

func TestCachedOrderStore_LateFillDoesNotRevert(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	inner := &racingOrderStore{OrderStore: memstore.New()}
	_, err := inner.CreateOrder(ctx, orders.Order{ID: "o1", Status: orders.StatusPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	cache := NewCachedOrderStore(inner, rdb, nil)

	cancelled := orders.StatusCancelled
	inner.hook = func() {
		_, err := cache.UpdateOrder(ctx, "o1", orders.StatusPending, orders.OrderPatch{Status: &cancelled, UpdatedAt: time.Now()})
		require.NoError(t, err)
	}
	stale, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, stale.Status)

	o, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)
}

func TestCachedOrderStore_LostWriteRefreshesEntry(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	inner := memstore.New()
	_, err := inner.CreateOrder(ctx, orders.Order{ID: "o1", Status: orders.StatusPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	cache := NewCachedOrderStore(inner, rdb, nil)
	_, err = cache.GetOrder(ctx, "o1")
	require.NoError(t, err)

	// write behind the cache's back
	accepted := orders.StatusAccepted
	_, err = inner.UpdateOrder(ctx, "o1", orders.StatusPending, orders.OrderPatch{Status: &accepted})
	require.NoError(t, err)

	cancelled := orders.StatusCancelled
	_, _, err = cache.ReleaseOrder(ctx, "o1", orders.StatusPending, orders.OrderPatch{Status: &cancelled})
	assert.ErrorIs(t, err, orders.ErrStatusChanged)
	assert.Equal(t, "2", mr.HGet("order:o1", "v"))

	o, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, o.Status)
}

func TestCachedOrderStore_FallsBackWhenRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	inner := memstore.New()
	_, err := inner.CreateOrder(ctx, orders.Order{ID: "o1", Status: orders.StatusPending})
	require.NoError(t, err)
	cache := NewCachedOrderStore(inner, rdb, nil)

	mr.Close()
	o, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestDeduper(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	d := NewDeduper(rdb, "audit")

	first, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, TTLDedup, mr.TTL("dedup:audit:ev-1"))

	require.NoError(t, d.Forget(ctx, "ev-1"))
	first, err = d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)
}
