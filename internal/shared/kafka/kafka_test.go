package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, splitBrokers(""))
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "bet_submitted")
	assert.Equal(t, "bet_submitted", w.Topic)
	assert.NotNil(t, w.Addr)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestWriteJSON(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, WriteJSON(context.Background(), w, "sig", map[string]int{"n": 1}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "sig", string(w.msgs[0].Key))
	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 1, got["n"])
	assert.False(t, w.msgs[0].Time.IsZero())
}

func TestWriteJSON_MarshalError(t *testing.T) {
	err := WriteJSON(context.Background(), &captureWriter{}, "k", make(chan int))
	assert.ErrorContains(t, err, "marshal kafka payload")
}
