package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	return out
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZerologAdapterTo(&buf, zerolog.DebugLevel, false).
		With(map[string]interface{}{"component": "issuer"})

	logger.Warn(context.Background(), "override ignored", map[string]interface{}{"client_id": "tv-app"})

	line := decodeLine(t, &buf)
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "override ignored", line["message"])
	assert.Equal(t, "issuer", line["component"])
	assert.Equal(t, "tv-app", line["client_id"])
	assert.NotContains(t, line, "trace_id")
}

func TestZerologAdapter_ErrorWithTrace(t *testing.T) {
	var buf bytes.Buffer

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	NewZerologAdapterTo(&buf, zerolog.InfoLevel, false).Error(ctx, "store failed", errors.New("boom"))

	line := decodeLine(t, &buf)
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), line["span_id"])
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	NewZerologAdapterTo(&buf, zerolog.InfoLevel, false).Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
