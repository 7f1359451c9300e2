//go:build integration

package messaging

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRabbitMQ(t *testing.T) *amqp.Connection {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	conn, err := amqp.DialConfig("amqp://"+host+":"+port.Port()+"/", amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer ccancel()
		_ = conn.Close()
		_ = container.Terminate(cctx)
	})
	return conn
}

func TestPublishConsumeRoundTrip(t *testing.T) {
	conn := startRabbitMQ(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan EventRecorded, 1)
	consumer := NewConsumer(conn, "", "cryotrace.test", func(_ context.Context, ev EventRecorded) error {
		got <- ev
		return nil
	}, quietLogger())
	require.NoError(t, consumer.Start(ctx))

	pub, err := NewPublisher(conn, "", quietLogger())
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.PublishEventRecorded(ctx, sampleEvent(), "corr-1"))

	select {
	case ev := <-got:
		assert.Equal(t, "MAN-1", ev.Payload.ManifestID)
		assert.Equal(t, "corr-1", ev.CorrelationID)
	case <-time.After(20 * time.Second):
		t.Fatal("event was not consumed")
	}
}
