package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInit_DisabledIsNoop(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceChatMessage_RecordsAttributes(t *testing.T) {
	rec := installRecorder(t)

	ctx, span := TraceChatMessage(context.Background(), 7, 42)
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "chat.inbound", ended[0].Name())

	attrs := map[string]int64{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInt64()
	}
	assert.Equal(t, int64(7), attrs["stream.id"])
	assert.Equal(t, int64(42), attrs["user.id"])
}

func TestTraceChatFrame_ParentsPipelineSpan(t *testing.T) {
	rec := installRecorder(t)

	ctx, frame := TraceChatFrame(context.Background(), "conn-1")
	_, inbound := TraceChatMessage(ctx, 7, 42)
	inbound.End()
	frame.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "chat.inbound", ended[0].Name())
	assert.Equal(t, "chat.frame", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())

	var connID string
	for _, kv := range ended[1].Attributes() {
		if kv.Key == ConnIDKey {
			connID = kv.Value.AsString()
		}
	}
	assert.Equal(t, "conn-1", connID)
}

func TestRecordError_SetsErrorStatus(t *testing.T) {
	rec := installRecorder(t)

	ctx, span := TraceAuthOperation(context.Background(), "login")
	RecordError(ctx, errors.New("invalid credentials"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "auth.login", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
}
