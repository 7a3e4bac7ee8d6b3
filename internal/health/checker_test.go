package health

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type staticChecker struct {
	result CheckResult
}

func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestProbeRunnerReady(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		runner := NewProbeRunner(time.Second, 0,
			staticChecker{CheckResult{Name: "db", Healthy: true}},
			staticChecker{CheckResult{Name: "redis", Healthy: true}},
		)
		ready, results := runner.Ready(context.Background())
		if !ready {
			t.Fatal("expected ready")
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
	})

	t.Run("one unhealthy fails readiness", func(t *testing.T) {
		runner := NewProbeRunner(time.Second, 0,
			staticChecker{CheckResult{Name: "db", Healthy: true}},
			staticChecker{CheckResult{Name: "redis", Healthy: false, Error: "connection refused"}},
		)
		ready, results := runner.Ready(context.Background())
		if ready {
			t.Fatal("expected not ready")
		}
		if results[1].Error == "" {
			t.Fatal("expected error detail on failing check")
		}
	})

	t.Run("grace period blocks readiness", func(t *testing.T) {
		runner := NewProbeRunner(time.Second, time.Hour,
			staticChecker{CheckResult{Name: "db", Healthy: true}},
		)
		ready, results := runner.Ready(context.Background())
		if ready {
			t.Fatal("expected not ready during grace period")
		}
		if len(results) != 1 || results[0].Name != "startup_grace" {
			t.Fatalf("unexpected results: %+v", results)
		}
	})

	t.Run("nil runner is always ready", func(t *testing.T) {
		var runner *ProbeRunner
		if ready, _ := runner.Ready(context.Background()); !ready {
			t.Fatal("nil runner should be ready")
		}
	})
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	res := checker.Check(context.Background())
	if !res.Healthy {
		t.Fatalf("expected healthy, got %+v", res)
	}

	mr.Close()
	res = checker.Check(context.Background())
	if res.Healthy {
		t.Fatal("expected unhealthy after server shutdown")
	}
}

func TestNewCheckersNilGuards(t *testing.T) {
	if NewDBChecker(nil) != nil {
		t.Fatal("nil db should yield nil checker")
	}
	if NewRedisChecker(nil) != nil {
		t.Fatal("nil redis client should yield nil checker")
	}
}
