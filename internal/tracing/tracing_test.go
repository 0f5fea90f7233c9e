package tracing

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMaskPII(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"J":          "*",
		"Li":         "L*",
		"Ana":        "A*a",
		"jane@x.com": "ja******om",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskPII(in), in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc...xyz", TruncateString("abcdefghijklmnopqrstuvwxyz", 9))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "ja******om", SafeAttributeValue("contact.email", "jane@x.com", 100))
	assert.Equal(t, "abc...xyz", SafeAttributeValue("jd.text", "abcdefghijklmnopqrstuvwxyz", 9))
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, errors.New("lexicon missing"), ErrorTypeLexicon)
	RecordError(span, nil, ErrorTypeLexicon)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	var errType string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "error.type" {
			errType = kv.Value.AsString()
		}
	}
	assert.Equal(t, "lexicon", errType)
}

func TestRecordHTTPError(t *testing.T) {
	tests := []struct {
		status   int
		category string
	}{
		{404, "client_error"},
		{503, "server_error"},
		{302, "unknown"},
	}
	for _, tt := range tests {
		rec := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		_, span := tp.Tracer("test").Start(context.Background(), "http")

		RecordHTTPError(span, errors.New("boom"), tt.status)
		span.End()

		spans := rec.Ended()
		require.Len(t, spans, 1)
		attrs := map[string]string{}
		for _, kv := range spans[0].Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		assert.Equal(t, "http", attrs["error.type"])
		assert.Equal(t, tt.category, attrs["error.category"])
		assert.Equal(t, strconv.Itoa(tt.status), attrs["http.status_code"])
	}
}

func TestSafeExcerpts(t *testing.T) {
	long := strings.Repeat("a", 400)
	assert.Equal(t, strings.Repeat("a", 73)+"..."+strings.Repeat("a", 73), SafeResumeContent(long))
	assert.LessOrEqual(t, len([]rune(SafeRedisKey(long))), MaxRedisLength)
	assert.Equal(t, "ats:lock:analysis:1", SafeRedisKey("ats:lock:analysis:1"))
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "ats-test", Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
