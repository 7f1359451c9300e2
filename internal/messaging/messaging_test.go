package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() *entity.WeightEvent {
	img := "uploads/pickup_photos/MAN-1_01J.jpg"
	return &entity.WeightEvent{
		ID:         7,
		Type:       constants.EventPickup,
		ManifestID: "MAN-1",
		WeightKg:   120.5,
		EventTime:  time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
		ImagePath:  &img,
	}
}

func TestPublishEventRecorded(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisherWithChannel(ch, DefaultExchange, quietLogger())

	require.NoError(t, p.PublishEventRecorded(context.Background(), sampleEvent(), "req-1"))
	assert.Equal(t, DefaultExchange, ch.exchange)
	assert.Equal(t, EventRecordedRoutingKey, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var env EventRecorded
	require.NoError(t, json.Unmarshal(ch.msg.Body, &env))
	require.NoError(t, env.Validate(eventRecordedName, eventRecordedVersion))
	assert.Equal(t, ch.msg.MessageId, env.EventID)
	assert.Equal(t, "MAN-1", env.PartitionKey)
	assert.Equal(t, "req-1", env.CorrelationID)
	assert.Equal(t, constants.EventPickup, env.Payload.Type)
	assert.Equal(t, int64(7), env.Payload.EventID)
	assert.Equal(t, "uploads/pickup_photos/MAN-1_01J.jpg", env.Payload.ImagePath)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublishEventRecorded_Error(t *testing.T) {
	p := NewPublisherWithChannel(&fakeChannel{err: errors.New("channel closed")}, DefaultExchange, quietLogger())
	assert.Error(t, p.PublishEventRecorded(context.Background(), sampleEvent(), ""))
}

func TestHandleDelivery(t *testing.T) {
	var got EventRecorded
	c := NewConsumer(nil, "", "", func(_ context.Context, ev EventRecorded) error {
		got = ev
		return nil
	}, quietLogger())

	body, err := json.Marshal(NewEventRecorded(sampleEvent(), ""))
	require.NoError(t, err)
	require.NoError(t, c.HandleDelivery(context.Background(), body))
	assert.Equal(t, "MAN-1", got.Payload.ManifestID)

	assert.Error(t, c.HandleDelivery(context.Background(), []byte("{")))

	wrong := NewEventRecorded(sampleEvent(), "")
	wrong.EventVersion = 2
	body, _ = json.Marshal(wrong)
	assert.ErrorContains(t, c.HandleDelivery(context.Background(), body), "eventVersion")

	missing := NewEventRecorded(&entity.WeightEvent{Type: constants.EventDropoff}, "")
	body, _ = json.Marshal(missing)
	assert.ErrorContains(t, c.HandleDelivery(context.Background(), body), "partitionKey")
}
