package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConsumer_HandleRetriesUntilSuccess(t *testing.T) {
	c := &Consumer{log: zap.NewNop(), retry: time.Millisecond}
	calls := 0
	err := c.handle(context.Background(), 0, func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("db down")
		}
		return nil
	}, kafka.Message{Topic: "order.created", Offset: 7})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestConsumer_HandleStopsWithContext(t *testing.T) {
	c := &Consumer{log: zap.NewNop(), retry: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := c.handle(ctx, 0, func(context.Context, kafka.Message) error {
		return errors.New("db down")
	}, kafka.Message{Topic: "order.created"})
	assert.Error(t, err)
}

func TestWorkerForKeepsPartitionOnOneWorker(t *testing.T) {
	m := kafka.Message{Topic: "order.cancelled", Partition: 3}
	w := workerFor(m, 4)
	for offset := int64(0); offset < 10; offset++ {
		m.Offset = offset
		assert.Equal(t, w, workerFor(m, 4))
	}
	assert.Equal(t, 0, workerFor(m, 1))
}
