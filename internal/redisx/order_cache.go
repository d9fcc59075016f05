package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

// putNewer writes the order hash only if no entry with the same or a higher
// version is cached. KEYS[1] order key; ARGV version, json doc, ttl in ms.
var putNewer = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'v'))
if cur and cur >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'doc', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// CachedOrderStore is a read-through, write-through cache for single
// orders. Entries only move forward by order version, so a slow read that
// lands after a write cannot put the older record back. Cache failures
// never fail the call.
type CachedOrderStore struct {
	orders.OrderStore
	rdb redis.Cmdable
	log *zap.Logger
}

var _ orders.OrderStore = (*CachedOrderStore)(nil)

func NewCachedOrderStore(inner orders.OrderStore, rdb redis.Cmdable, log *zap.Logger) *CachedOrderStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedOrderStore{OrderStore: inner, rdb: rdb, log: log}
}

func (s *CachedOrderStore) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	if b, err := s.rdb.HGet(ctx, OrderKey(id), "doc").Bytes(); err == nil {
		var o orders.Order
		if err := json.Unmarshal(b, &o); err == nil {
			return o, nil
		}
		s.log.Warn("drop unreadable order cache entry", zap.String("order_id", id))
		s.evict(ctx, id)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn("order cache get", zap.String("order_id", id), zap.Error(err))
	}

	o, err := s.OrderStore.GetOrder(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	s.put(ctx, o)
	return o, nil
}

func (s *CachedOrderStore) UpdateOrder(ctx context.Context, id string, expect orders.Status, patch orders.OrderPatch) (orders.Order, error) {
	o, err := s.OrderStore.UpdateOrder(ctx, id, expect, patch)
	s.afterWrite(ctx, id, o, err)
	return o, err
}

func (s *CachedOrderStore) ReleaseOrder(ctx context.Context, id string, expect orders.Status, patch orders.OrderPatch) (orders.Order, bool, error) {
	o, restocked, err := s.OrderStore.ReleaseOrder(ctx, id, expect, patch)
	s.afterWrite(ctx, id, o, err)
	return o, restocked, err
}

// afterWrite caches the written order. A lost conditional write means the
// cached status may be behind, so the entry is refreshed from the store.
func (s *CachedOrderStore) afterWrite(ctx context.Context, id string, o orders.Order, err error) {
	ctx = context.WithoutCancel(ctx)
	switch {
	case err == nil:
		s.put(ctx, o)
	case errors.Is(err, orders.ErrStatusChanged):
		if fresh, err := s.OrderStore.GetOrder(ctx, id); err == nil {
			s.put(ctx, fresh)
		} else {
			s.evict(ctx, id)
		}
	}
}

func (s *CachedOrderStore) put(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	ttl := strconv.FormatInt(TTLOrderCache.Milliseconds(), 10)
	if err := putNewer.Run(ctx, s.rdb, []string{OrderKey(o.ID)}, o.Version, b, ttl).Err(); err != nil {
		s.log.Warn("order cache set", zap.String("order_id", o.ID), zap.Error(err))
		s.evict(ctx, o.ID)
	}
}

func (s *CachedOrderStore) evict(ctx context.Context, id string) {
	if err := s.rdb.Del(context.WithoutCancel(ctx), OrderKey(id)).Err(); err != nil {
		s.log.Warn("order cache evict", zap.String("order_id", id), zap.Error(err))
	}
}
