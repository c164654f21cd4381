//go:build integration

package natsbridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
)

func startNATSContainer(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestIntegration_RoundTrip(t *testing.T) {
	ctx := context.Background()
	url := startNATSContainer(ctx, t)
	dial := NewDialer(url, WithClientName("nodeflow-integration"))

	in, err := NewInNode("in", dial, InConfig{Subjects: []string{"flow.>"}, JSONPayload: true}, quiet()...)
	require.NoError(t, err)
	require.NoError(t, in.Connect(ctx))
	defer in.Close()
	in.Start()

	received := newSink(t, "received")
	_, err = nodeflow.Wire(in, received)
	require.NoError(t, err)

	out, err := NewOutNode("out", dial, OutConfig{Subject: "flow.default", SubjectOverride: true}, quiet()...)
	require.NoError(t, err)
	require.NoError(t, out.Connect(ctx))
	defer out.Close()
	out.Start()

	msg := nodeflow.NewMessageWithMetadata(map[string]any{"temp": 21.5}, map[string]any{MetaSubject: "flow.sensors"})
	require.NoError(t, out.OnMessage(ctx, msg))
	require.Equal(t, nodeflow.StatusRunning, out.Status())

	require.Eventually(t, func() bool {
		return len(received.messages()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	got := received.messages()[0]
	assert.Equal(t, map[string]any{"temp": 21.5}, got.Payload())
	subject, _ := got.Get(MetaSubject)
	assert.Equal(t, "flow.sensors", subject)
}
