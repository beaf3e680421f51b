package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/realtime-hub/internal/tools/common"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
	Delivered     int
}

type sendReply struct {
	ReceiverDelivered int `json:"receiver_delivered"`
}

// Run drives synthetic traffic against a hub. The "presence" profile reads
// stats and health, "messaging" sends peer messages between two generated
// users, and "mixed" alternates at random.
func Run(ctx context.Context, cfg Config) (Result, error) {
	profile := normalizeProfile(cfg.Profile)
	if profile != "presence" && profile != "messaging" && profile != "mixed" {
		return Result{}, fmt.Errorf("unknown profile %q", cfg.Profile)
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}

	sender := common.NewClient(cfg.BaseURL)
	receiver := common.NewClient(cfg.BaseURL)
	suffix := fmt.Sprintf("%d", cfg.Seed)
	var receiverID uint
	if profile != "presence" {
		if _, err := sender.Login(ctx, "loadgen-sender-"+suffix, "loadgen"); err != nil {
			return Result{}, err
		}
		id, err := receiver.Login(ctx, "loadgen-receiver-"+suffix, "loadgen")
		if err != nil {
			return Result{}, err
		}
		receiverID = id
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		mu  sync.Mutex
		res = Result{StatusClasses: map[string]int{}}
		rng = rand.New(rand.NewSource(cfg.Seed))
	)
	pick := func() string {
		if profile != "mixed" {
			return profile
		}
		mu.Lock()
		defer mu.Unlock()
		if rng.Intn(2) == 0 {
			return "presence"
		}
		return "messaging"
	}
	record := func(status int, delivered int, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.TotalRequests++
		res.StatusClasses[classifyStatusClass(status)]++
		res.Delivered += delivered
		if err != nil {
			res.Failures++
		}
	}

	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for n := range jobs {
				switch pick() {
				case "presence":
					status, err := sender.Do(gctx, http.MethodGet, "/api/v1/stats/presence", nil, nil)
					record(status, 0, err)
				default:
					var reply sendReply
					body := map[string]any{"receiver_id": receiverID, "content": fmt.Sprintf("loadgen message %d", n)}
					status, err := sender.Do(gctx, http.MethodPost, "/api/v1/contacts/messages", body, &reply)
					record(status, reply.ReceiverDelivered, err)
				}
			}
			return nil
		})
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	n := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			select {
			case jobs <- n:
				n++
			case <-ctx.Done():
				break loop
			}
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}
	return res, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}
