// Package audit consumes order lifecycle events and keeps a durable,
// deduplicated trail of them per order.
package audit

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-farm-market.git/internal/kafka"
	"github.com/ariefcatur/go-farm-market.git/internal/orders"
)

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Recorder interface {
	Record(ctx context.Context, ev orders.Envelope) (bool, error)
}

// Service is the kafka handler of the audit consumer.
type Service struct {
	dedup  Deduper
	rec    Recorder
	log    *zap.Logger
	tracer trace.Tracer
}

func NewService(dedup Deduper, rec Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		dedup:  dedup,
		rec:    rec,
		log:    log,
		tracer: otel.Tracer("github.com/ariefcatur/go-farm-market.git/internal/audit"),
	}
}

var known = map[string]bool{
	orders.EventOrderCreated:       true,
	orders.EventOrderStatusChanged: true,
	orders.EventOrderCancelled:     true,
}

// Handle records one message. A nil return commits the offset, so
// undecodable and unknown messages are logged and skipped.
func (s *Service) Handle(ctx context.Context, m kafka.Message) (err error) {
	carrier := kafkax.HeaderCarrier(m.Headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, &carrier)
	ctx, span := s.tracer.Start(ctx, "audit.record", trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", m.Topic),
			attribute.Int64("messaging.kafka.offset", m.Offset),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ev, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		s.log.Warn("skip undecodable message",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
		return nil
	}
	if !known[ev.EventType] {
		s.log.Debug("skip unknown event type", zap.String("event_type", ev.EventType))
		return nil
	}
	span.SetAttributes(attribute.String("event.id", ev.EventID), attribute.String("order.id", ev.CorrelationID))

	first, err := s.dedup.Claim(ctx, ev.EventID)
	if err != nil {
		// redis down: lanjut, ON CONFLICT di tabel tetap menjaga idempotensi
		s.log.Warn("dedup unavailable", zap.String("event_id", ev.EventID), zap.Error(err))
		first = true
	}
	if !first {
		s.log.Debug("duplicate event", zap.String("event_id", ev.EventID))
		return nil
	}

	inserted, err := s.rec.Record(ctx, ev)
	if err != nil {
		if ferr := s.dedup.Forget(context.WithoutCancel(ctx), ev.EventID); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return err
	}
	s.log.Info("order event recorded",
		zap.String("event_id", ev.EventID),
		zap.String("event_type", ev.EventType),
		zap.String("order_id", ev.CorrelationID),
		zap.Bool("inserted", inserted))
	return nil
}
