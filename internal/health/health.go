package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type CheckResult struct {
	Name       string `json:"name"`
	Healthy    bool   `json:"healthy"`
	Critical   bool   `json:"critical"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner runs every checker under a shared timeout. Results are reused
// for cacheTTL to keep frequent probes off the dependencies.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker

	mu       sync.Mutex
	cachedAt time.Time
	cached   []CheckResult
}

func NewProbeRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers}
}

// Ready reports false when any critical check fails. Non-critical failures
// are returned in the results but do not affect readiness.
func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	results := p.run(ctx)
	ready := true
	for _, r := range results {
		if !r.Healthy && r.Critical {
			ready = false
		}
	}
	return ready, results
}

func (p *ProbeRunner) run(ctx context.Context) []CheckResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cacheTTL > 0 && p.cached != nil && time.Since(p.cachedAt) < p.cacheTTL {
		return p.cached
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	results := make([]CheckResult, len(p.checkers))
	var wg sync.WaitGroup
	for i, c := range p.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := c.Check(ctx)
			res.DurationMS = time.Since(start).Milliseconds()
			results[i] = res
		}()
	}
	wg.Wait()
	p.cached, p.cachedAt = results, time.Now()
	return results
}

type DBChecker struct {
	DB *gorm.DB
}

func (c DBChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "database", Critical: true}
	if c.DB == nil {
		res.Error = "database not configured"
		return res
	}
	sqlDB, err := c.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Healthy = true
	return res
}

var errRedisDisabled = errors.New("redis disabled, presence runs in degraded mode")

// RedisChecker is non-critical: the service keeps working without the cache.
type RedisChecker struct {
	Client redis.UniversalClient
}

func (c RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis"}
	if c.Client == nil {
		res.Error = errRedisDisabled.Error()
		return res
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Healthy = true
	return res
}
