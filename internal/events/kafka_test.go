package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	event := OrdersPlaced{CheckoutID: uuid.New(), BuyerID: "buyer-1", OrderIDs: []uuid.UUID{uuid.New()}}
	require.NoError(t, p.Publish(context.Background(), TopicOrdersPlaced, event.CheckoutID.String(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicOrdersPlaced, w.msgs[0].Topic)
	assert.Equal(t, event.CheckoutID.String(), string(w.msgs[0].Key))

	var decoded OrdersPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, event.BuyerID, decoded.BuyerID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), TopicPaymentChanged, "k", PaymentChanged{})
	assert.ErrorContains(t, err, "broker down")
}

func TestLogPublisher(t *testing.T) {
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), TopicOrdersPlaced, "k", nil))
}

func TestKafkaPublisher_RawPayload(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	raw := json.RawMessage(`{"order_id":"o-1","to":"shipped"}`)
	require.NoError(t, p.Publish(context.Background(), TopicFulfillmentChanged, "o-1", raw))

	require.Len(t, w.msgs, 1)
	assert.JSONEq(t, string(raw), string(w.msgs[0].Value))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, TopicFulfillmentChanged, string(w.msgs[0].Headers[0].Value))
}
