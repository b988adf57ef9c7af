package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg *Config) (*BaseLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Format = JSONFormat
	l, err := New(cfg, WithWriteSyncer(zapcore.AddSync(buf)))
	require.NoError(t, err)
	return l, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{name: "nil config uses default", config: nil},
		{name: "partial config", config: &Config{Level: DebugLevel}},
		{
			name:    "file enabled without path",
			config:  &Config{EnableFile: true},
			wantErr: ErrInvalidOutputPath,
		},
		{
			name:    "unknown level",
			config:  &Config{Level: "verbose"},
			wantErr: ErrInvalidLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: WarnLevel})

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["msg"])
	assert.Equal(t, "error", lines[1]["msg"])
}

func TestKeyValueFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	l.Info("draw finished", "count", 10, "banner", "summer", "error", errors.New("boom"), "dangling")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 10, lines[0]["count"])
	assert.Equal(t, "summer", lines[0]["banner"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.NotContains(t, lines[0], "dangling")
}

func TestNamedAndWithFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	child := l.Named("service").Named("gacha").WithFields("instance", "a1")
	child.Info("hello")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "service.gacha", lines[0]["logger"])
	assert.Equal(t, "a1", lines[0]["instance"])
}

func TestContextFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	ctx := WithContextFields(context.Background(), FieldRequestID, "req-1", FieldUserID, int64(7))
	ctx = WithContextFields(ctx, FieldUserID, int64(8), FieldBannerID, int64(3))
	l.InfoContext(ctx, "with context", "extra", true)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0][FieldRequestID])
	assert.EqualValues(t, 8, lines[0][FieldUserID])
	assert.EqualValues(t, 3, lines[0][FieldBannerID])
	assert.Equal(t, true, lines[0]["extra"])
}

func TestDefaultContextExtractorEmpty(t *testing.T) {
	assert.Nil(t, DefaultContextExtractor(context.Background()))
	assert.Equal(t, context.Background(), WithContextFields(context.Background(), "only-key"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gacha.log")
	l, err := New(&Config{EnableFile: true, OutputPath: path, Format: JSONFormat})
	require.NoError(t, err)

	l.Info("to file")
	_ = l.Sync()

	w, err := NewRotationWriter(&RotationConfig{Type: RotationByTime}, filepath.Join(t.TempDir(), "time.log"))
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestDefaultAndNoop(t *testing.T) {
	assert.NotNil(t, Default())

	noop := NewNoop()
	SetDefault(noop)
	t.Cleanup(func() { SetDefault(nil) })
	assert.Same(t, noop, Default())
	assert.Same(t, noop, noop.Named("x").WithFields("a", 1))
	assert.NoError(t, noop.Sync())
}
