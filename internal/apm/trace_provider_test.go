package apm

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fd1az/spread-monitor/internal/logger"
)

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ZipkinProvider, ParseProvider("zipkin"))
	assert.Equal(t, OTLPGRPCProvider, ParseProvider(" OTLP-GRPC "))
	assert.Equal(t, OTLPHTTPProvider, ParseProvider("otlp-http"))
	assert.Equal(t, ConsoleProvider, ParseProvider("console"))
	assert.Equal(t, EmptyProvider, ParseProvider("jaeger"))
	assert.Equal(t, EmptyProvider, ParseProvider(""))
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("x-team=abc, api-key=k=v,broken,=x")
	assert.Equal(t, map[string]string{"x-team": "abc", "api-key": "k=v"}, h)
	assert.Empty(t, ParseHeaders(""))
}

func TestNewTraceProvider_Empty(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	tp, err := NewTraceProvider(log, EmptyProvider, Options{})
	require.NoError(t, err)
	assert.NoError(t, tp.Stop())
}

func TestNewTraceProvider_Console(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	tp, err := NewTraceProvider(log, ConsoleProvider, Options{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, tp.Stop())
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	id := TraceID(ctx)
	require.Len(t, id, 32)
	assert.Equal(t, span.SpanContext().TraceID().String(), id)

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "test", TraceID)
	log.Info(ctx, "traced")
	assert.Contains(t, buf.String(), id)
}
