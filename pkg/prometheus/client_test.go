package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndRegister(t *testing.T) {
	c, err := New(&Config{Namespace: "gacha_test"}, nil)
	require.NoError(t, err)

	draws, err := c.NewCounterVec("draws_total", "draws", []string{"banner"})
	require.NoError(t, err)
	draws.WithLabelValues("1").Add(10)
	assert.Equal(t, 10.0, testutil.ToFloat64(draws.WithLabelValues("1")))

	_, err = c.NewCounterVec("draws_total", "draws", []string{"banner"})
	assert.Error(t, err, "duplicate registration")

	latency, err := c.NewHistogramVec("latency_seconds", "latency", []string{"op"}, nil)
	require.NoError(t, err)
	latency.WithLabelValues("draw").Observe(0.01)

	gauge, err := c.NewGaugeVec("pool_size", "pool", []string{"category"})
	require.NoError(t, err)
	gauge.WithLabelValues("mid").Set(4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gacha_test_draws_total"))
	assert.True(t, strings.Contains(body, "gacha_test_pool_size"))

	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
	assert.ErrorIs(t, c.Stop(), ErrClientClosed)

	_, err = c.NewCounterVec("late_total", "late", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Namespace = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.HTTPServer.Enabled = true
	cfg.HTTPServer.Addr = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
