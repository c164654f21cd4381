package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("nodeflow")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		tracer = otel.Tracer("nodeflow")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartDeliverySpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with node and message attributes", func(t *testing.T) {
		_, span := StartDeliverySpan(context.Background(), "switch-1", "msg-1")
		require.NotNil(t, span)
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		s := spans[0]
		assert.Equal(t, "nodeflow.deliver.switch-1", s.Name)

		var nodeID, messageID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "node.id":
				nodeID = attr.Value.AsString()
			case "message.id":
				messageID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "switch-1", nodeID)
		assert.Equal(t, "msg-1", messageID)
	})

	t.Run("nested deliveries share a trace", func(t *testing.T) {
		exporter.Reset()

		ctx, parent := StartDeliverySpan(context.Background(), "change-1", "msg-1")
		_, child := StartDeliverySpan(ctx, "debug-1", "msg-2")
		child.End()
		parent.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)
		assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
		assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("sets error status", func(t *testing.T) {
		_, span := StartDeliverySpan(context.Background(), "out-1", "msg-1")
		EndSpanWithError(span, errors.New("publish failed"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "publish failed", spans[0].Status.Description)
		require.NotEmpty(t, spans[0].Events)
	})

	t.Run("sets ok status", func(t *testing.T) {
		exporter.Reset()

		_, span := StartDeliverySpan(context.Background(), "debug-1", "msg-1")
		EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() { EndSpanWithError(nil, nil) })
	})
}

func TestSpanManager(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, span := sm.StartDeliverySpan(context.Background(), "rules", "msg-9")
	sm.AddSpanEvent(ctx, "rule.matched", attribute.Int("output", 1))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "rule.matched", spans[0].Events[0].Name)
}

func TestAddSpanEvent_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "ignored")
	})
}
