package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

// Repo appends envelopes to order_events. Re-inserting an event id is a no-op.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Record(ctx context.Context, ev orders.Envelope) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO order_events(event_id, event_type, event_version, order_id, producer, trace_id, payload, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.EventType, ev.EventVersion, ev.CorrelationID, ev.Producer, ev.TraceID,
		string(ev.Payload), ev.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("insert order event %s: %w", ev.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}
