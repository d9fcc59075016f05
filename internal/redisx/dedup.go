package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Deduper claims event ids so redelivered messages are handled once.
type Deduper struct {
	rdb     redis.Cmdable
	service string
}

func NewDeduper(rdb redis.Cmdable, service string) *Deduper {
	return &Deduper{rdb: rdb, service: service}
}

// Claim returns true when this caller is the first to see eventID.
func (d *Deduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, DedupKey(d.service, eventID), "1", TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Forget releases a claim after processing failed, so a redelivery retries.
func (d *Deduper) Forget(ctx context.Context, eventID string) error {
	if err := d.rdb.Del(ctx, DedupKey(d.service, eventID)).Err(); err != nil {
		return fmt.Errorf("dedup forget: %w", err)
	}
	return nil
}
