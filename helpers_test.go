package sessionguard

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestManager builds a Manager against miniredis. mutate can adjust the
// config before Build; pass nil to keep defaults (plus metrics, which tests
// rely on for assertions).
func newTestManager(t *testing.T, mutate func(*Config)) (*Manager, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	manager, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("manager build: %v", err)
	}

	return manager, mr, func() {
		manager.Close()
		rdb.Close()
		mr.Close()
	}
}

// setClock pins the manager's clock so grace-window and expiry boundaries can
// be driven deterministically.
func setClock(m *Manager, at time.Time) {
	m.now = func() time.Time { return at }
}
