package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gotest.tools/v3/assert"

	"github.com/alanyoungcy/tradeconsole/internal/cache/memory"
	"github.com/alanyoungcy/tradeconsole/internal/cache/redis"
	"github.com/alanyoungcy/tradeconsole/internal/config"
	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// statusOnlyRemote answers /status and 404s everything else.
func statusOnlyRemote(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/status" {
			w.Write([]byte(`{"state":"running","open_trades":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/api/v1"
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Remote.BaseURL = statusOnlyRemote(t)
	return &cfg
}

func TestWire_InProcessCaches(t *testing.T) {
	cfg := testConfig(t)

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	assert.NilError(t, err)
	defer cleanup()

	_, ok := deps.SignalBus.(*memory.SignalBus)
	assert.Assert(t, ok)
	_, ok = deps.LockManager.(*memory.LockManager)
	assert.Assert(t, ok)
	assert.Assert(t, deps.Digest == nil)

	assert.Assert(t, deps.Poller.Refresh(context.Background()))
	snap := deps.Store.Read()
	assert.Equal(t, snap.State, domain.BotStateRunning)
	assert.Equal(t, snap.LastError, "")
	_, failed := snap.CategoryErrors[domain.CategoryBalance]
	assert.Assert(t, failed)
}

func TestWire_RedisCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	assert.NilError(t, err)
	defer cleanup()

	_, ok := deps.SignalBus.(*redis.SignalBus)
	assert.Assert(t, ok)
	_, ok = deps.RateLimiter.(*redis.RateLimiter)
	assert.Assert(t, ok)
}

func TestWire_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Redis.MaxRetries = 0

	_, _, err := Wire(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "wire: redis")
}

func TestWire_Digest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.DigestCron = "0 8 * * *"

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	assert.NilError(t, err)
	defer cleanup()
	assert.Assert(t, deps.Digest != nil)
}

func TestWire_CleanupClosesStore(t *testing.T) {
	cfg := testConfig(t)

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	assert.NilError(t, err)
	cleanup()

	deps.Poller.Refresh(context.Background())
	assert.Equal(t, deps.Store.Read().State, domain.BotStateLoading)
}

func TestLogSnapshots_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, discardLogger())

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	assert.NilError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan []byte, 2)
	ch <- []byte(`{"version":1,"state":"running","open_trades":0}`)
	ch <- []byte(`not json`)

	done := make(chan error, 1)
	go func() { done <- a.logSnapshots(ctx, ch, deps.Store) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("logSnapshots did not return after cancel")
	}
}

func TestRun_UnknownMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "trade"
	a := New(cfg, discardLogger())
	defer a.Close()

	err := a.Run(context.Background())
	assert.ErrorContains(t, err, `unsupported mode "trade"`)
}
