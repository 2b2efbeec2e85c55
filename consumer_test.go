package main

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWriteTask(t *testing.T) {
	m := kafka.Message{Topic: "position-writes", Partition: 2, Offset: 41,
		Value: []byte(`{"writes":[{"position":1,"value":5},{"position":0,"value":6}]}`)}

	task, err := decodeWriteTask(m)

	require.NoError(t, err)
	assert.Equal(t, "position-writes/2/41", task.Task)
	assert.Equal(t, []Write{{Position: 1, Value: 5}, {Position: 0, Value: 6}}, task.Writes)
}

func TestDecodeWriteTask_Malformed(t *testing.T) {
	for name, value := range map[string]string{
		"not json":  `{`,
		"no writes": `{"task":"t"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeWriteTask(kafka.Message{Value: []byte(value)})
			assert.ErrorIs(t, err, ErrTaskResolution)
		})
	}
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	svc, p := newTestService(2, []Item{Some(1)})

	ok := handleMessage(ctx, svc, kafka.Message{Value: []byte(`{"task":"k1","writes":[{"position":2,"value":3}]}`)})
	assert.True(t, ok)
	assert.Equal(t, []Item{Some(1), Empty, Some(3)}, svc.Snapshot())

	// битое сообщение фиксируется и пропускается
	ok = handleMessage(ctx, svc, kafka.Message{Value: []byte(`garbage`)})
	assert.True(t, ok)
	ok = handleMessage(ctx, svc, kafka.Message{Value: []byte(`{"writes":[{"position":-4,"value":3}]}`)})
	assert.True(t, ok)
	ok = handleMessage(ctx, svc, kafka.Message{Value: []byte(`{"writes":[{"position":1000000000000000000,"value":3}]}`)})
	assert.True(t, ok, "too large position is skipped, not retried")
	assert.Equal(t, []Item{Some(1), Empty, Some(3)}, svc.Snapshot())

	// ошибка сохранения - не фиксируем, сообщение будет повторено
	p.err = errors.New("db down")
	ok = handleMessage(ctx, svc, kafka.Message{Value: []byte(`{"writes":[{"position":0,"value":9}]}`)})
	assert.False(t, ok)
}
