package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

// Sink is what EventPublisher hands encoded messages to.
type Sink interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header)
}

// EventPublisher turns lifecycle envelopes into keyed Kafka messages.
type EventPublisher struct {
	sink Sink
	log  *zap.Logger
}

var _ orders.Publisher = (*EventPublisher)(nil)

func NewEventPublisher(sink Sink, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventPublisher{sink: sink, log: log}
}

func (p *EventPublisher) Publish(ctx context.Context, topic string, ev orders.Envelope) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("encode envelope", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}
	headers := HeaderCarrier{
		{Key: HeaderEventType, Value: []byte(ev.EventType)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(ev.EventVersion))},
	}
	otel.GetTextMapPropagator().Inject(ctx, &headers)
	p.sink.Publish(topic, orders.PartitionKey(ev.CorrelationID), value, headers...)
}
