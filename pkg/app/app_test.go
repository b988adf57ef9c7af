package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeServer struct {
	name     string
	rec      *recorder
	startErr error
}

func (s *fakeServer) Start() error {
	s.rec.add("start:" + s.name)
	return s.startErr
}

func (s *fakeServer) Stop() error {
	s.rec.add("stop:" + s.name)
	return nil
}

type gracefulServer struct{ fakeServer }

func (s *gracefulServer) GracefulStop() error {
	s.rec.add("graceful:" + s.name)
	return nil
}

func TestRunAndShutdownOrder(t *testing.T) {
	rec := &recorder{}
	a := NewBaseApp(WithName("gacha-test"), WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))
	Bind(a, Components{
		Servers: []Server{&fakeServer{name: "metrics", rec: rec}, &gracefulServer{fakeServer{name: "http", rec: rec}}},
		Closers: []Closer{
			CloserFunc(func() error { rec.add("close:db"); return nil }),
			CloserFunc(func() error { rec.add("close:redis"); return errors.New("already closed") }),
		},
	})

	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	require.Eventually(t, func() bool { return len(rec.list()) >= 2 }, time.Second, 5*time.Millisecond)
	a.cancel()

	select {
	case err := <-done:
		assert.Error(t, err, "closer error is reported")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	events := rec.list()
	assert.Equal(t, []string{"start:metrics", "start:http"}, events[:2])
	assert.ElementsMatch(t, []string{"stop:metrics", "graceful:http"}, events[2:4])
	assert.Equal(t, []string{"close:redis", "close:db"}, events[4:])

	assert.ErrorIs(t, a.Run(), ErrAppAlreadyRunning)
	assert.NoError(t, a.Shutdown())
}

func TestRunStartFailure(t *testing.T) {
	rec := &recorder{}
	a := NewBaseApp(WithLogger(logger.NewNoop()))
	a.AppendServer(&fakeServer{name: "bad", rec: rec, startErr: errors.New("port in use")})

	err := a.Run()
	require.Error(t, err)
	assert.Contains(t, rec.list(), "stop:bad")
}

type fileConfig struct {
	HTTP struct {
		Port int `mapstructure:"port" validate:"min=1,max=65535"`
	} `mapstructure:"http"`
	Name string `mapstructure:"name" validate:"required"`
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: gacha\nhttp:\n  port: 8080\n"), 0o644))

	t.Setenv("GACHA_HTTP_PORT", "9191")
	var cfg fileConfig
	require.NoError(t, LoadConfigFile(path, &cfg))
	assert.Equal(t, "gacha", cfg.Name)
	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.Equal(t, path, GetConfigPath())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("http:\n  port: 8080\n"), 0o644))
	assert.Error(t, LoadConfigFile(bad, &fileConfig{}))

	assert.Error(t, LoadConfigFile(filepath.Join(dir, "missing.yaml"), &fileConfig{}))
}
