package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type countingChecker struct {
	calls    atomic.Int32
	healthy  bool
	critical bool
}

func (c *countingChecker) Check(context.Context) CheckResult {
	c.calls.Add(1)
	return CheckResult{Name: "counting", Healthy: c.healthy, Critical: c.critical}
}

func TestProbeRunnerCriticalFailureMakesUnready(t *testing.T) {
	p := NewProbeRunner(time.Second, 0, &countingChecker{healthy: true, critical: true}, &countingChecker{healthy: false, critical: true})
	ready, results := p.Ready(context.Background())
	if ready {
		t.Fatal("expected unready when a critical check fails")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerNonCriticalFailureStaysReady(t *testing.T) {
	p := NewProbeRunner(time.Second, 0, &countingChecker{healthy: true, critical: true}, RedisChecker{})
	ready, results := p.Ready(context.Background())
	if !ready {
		t.Fatalf("expected ready with disabled redis, got %+v", results)
	}
	if results[1].Healthy || results[1].Error == "" {
		t.Fatalf("expected redis result to report degraded mode, got %+v", results[1])
	}
}

func TestProbeRunnerCachesResults(t *testing.T) {
	c := &countingChecker{healthy: true, critical: true}
	p := NewProbeRunner(time.Second, time.Minute, c)
	p.Ready(context.Background())
	p.Ready(context.Background())
	if got := c.calls.Load(); got != 1 {
		t.Fatalf("expected cached probe to run once, ran %d times", got)
	}
}

func TestDBAndRedisCheckers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if res := (DBChecker{DB: db}).Check(context.Background()); !res.Healthy || !res.Critical {
		t.Fatalf("expected healthy critical db check, got %+v", res)
	}
	if res := (DBChecker{}).Check(context.Background()); res.Healthy {
		t.Fatal("expected nil db to be unhealthy")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if res := (RedisChecker{Client: client}).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy redis check, got %+v", res)
	}
	mr.Close()
	if res := (RedisChecker{Client: client}).Check(context.Background()); res.Healthy {
		t.Fatal("expected closed redis to be unhealthy")
	}
}
