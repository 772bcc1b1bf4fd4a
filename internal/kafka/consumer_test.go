package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestProcessRetriesUntilSuccess(t *testing.T) {
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis down")
		}
		return nil
	}

	err := process(context.Background(), h, kafka.Message{Offset: 7}, 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	h := func(context.Context, kafka.Message) error {
		calls++
		return boom
	}

	err := process(context.Background(), h, kafka.Message{}, 3, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestProcessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		cancel()
		return errors.New("boom")
	}

	err := process(ctx, h, kafka.Message{}, 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestShardPinsPartitionToOneWorker(t *testing.T) {
	for p := 0; p < 12; p++ {
		w := shard("order.created", p, 4)
		assert.GreaterOrEqual(t, w, 0)
		assert.Less(t, w, 4)
		assert.Equal(t, w, shard("order.created", p, 4))
	}
	assert.NotEqual(t, shard("order.created", 0, 4), shard("order.created", 1, 4),
		"neighbouring partitions spread over workers")
	assert.Equal(t, 0, shard("order.status.changed", 3, 1))
}
