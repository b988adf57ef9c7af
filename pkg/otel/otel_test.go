package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func newRecordingProvider(t *testing.T) (*TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	p, err := New(&Config{Enabled: true, ExporterType: ExporterTypeNoop}, WithSpanProcessor(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.True(t, p.IsEnabled())
	return p, rec
}

func TestNewDisabled(t *testing.T) {
	p, err := New(&Config{})
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())

	_, span := p.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Close(), ErrProviderClosed)
}

func TestNewNoopExporter(t *testing.T) {
	p, err := New(&Config{Enabled: true, ExporterType: ExporterTypeNoop})
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"disabled", Config{}, nil},
		{"ok", *DefaultConfig(), nil},
		{"bad ratio", Config{Enabled: true, ServiceName: "gacha", ExporterType: ExporterTypeNoop,
			Sampler: SamplerConfig{Type: SamplerTypeRatio, Ratio: 1.5}}, ErrInvalidSamplerRatio},
		{"no service", Config{Enabled: true, ExporterType: ExporterTypeNoop}, ErrInvalidServiceName},
		{"bad exporter", Config{Enabled: true, ServiceName: "gacha", ExporterType: "zipkin"}, ErrUnsupportedExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEnd(t *testing.T) {
	p, rec := newRecordingProvider(t)

	_, ok := p.Tracer("test").Start(context.Background(), "ok")
	End(ok, nil)
	_, failed := p.Tracer("test").Start(context.Background(), "failed")
	End(failed, errors.New("boom"))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	assert.Len(t, spans[1].Events(), 1)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p, rec := newRecordingProvider(t)

	var traceID string
	var fields []zap.Field
	r := gin.New()
	r.Use(Middleware(p))
	r.GET("/api/v1/banners/:banner_id/pool", func(c *gin.Context) {
		traceID = TraceID(c.Request.Context())
		fields = logger.DefaultContextExtractor(c.Request.Context())
		c.Status(http.StatusOK)
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	const parent = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/banners/7/pool", nil)
	req.Header.Set("traceparent", "00-"+parent+"-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /api/v1/banners/:banner_id/pool", spans[0].Name())
	assert.Equal(t, parent, spans[0].SpanContext().TraceID().String())
	assert.Equal(t, parent, traceID)
	require.Len(t, fields, 1)
	assert.Equal(t, logger.FieldTraceID, fields[0].Key)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "GET /fail", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
