package presencecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/realtime-hub/internal/tools/common"
	"github.com/sandeepkv93/realtime-hub/internal/tools/loadgen"
	"github.com/sandeepkv93/realtime-hub/internal/tools/ui"
)

type options struct {
	baseURL    string
	userPrefix string
	password   string
	timeout    time.Duration
	ci         bool

	profile     string
	duration    time.Duration
	rps         int
	concurrency int
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "presencecheck", Short: "Verify login, websocket delivery and presence accounting against a running hub"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", envOr("HUB_BASE_URL", "http://localhost:8080"), "hub base URL")
	cmd.PersistentFlags().StringVar(&opts.userPrefix, "user-prefix", "presencecheck", "name prefix for the probe users")
	cmd.PersistentFlags().StringVar(&opts.password, "password", envOr("HUB_PROBE_PASSWORD", "presencecheck"), "password for the probe users")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-step wait for websocket delivery")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts), newLoadCommand(opts))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in two users, deliver a message over websocket and check presence stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "presencecheck run", func(ctx context.Context) ([]string, error) {
				return Verify(ctx, opts.baseURL, opts.userPrefix, opts.password, opts.timeout)
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "presencecheck run", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func newLoadCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Generate presence and messaging traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "presencecheck load", func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, loadgen.Config{
					BaseURL:     opts.baseURL,
					Profile:     opts.profile,
					Duration:    opts.duration,
					RPS:         opts.rps,
					Concurrency: opts.concurrency,
					Seed:        time.Now().UnixNano(),
				})
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("requests total=%d failures=%d", res.TotalRequests, res.Failures),
					fmt.Sprintf("status classes %v", res.StatusClasses),
					fmt.Sprintf("websocket deliveries reported=%d", res.Delivered),
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "presencecheck load", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.profile, "profile", "mixed", "traffic profile: presence, messaging or mixed")
	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "traffic duration")
	cmd.Flags().IntVar(&opts.rps, "rps", 20, "requests per second")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "concurrent workers")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

type presenceStats struct {
	Online              int64 `json:"online_count"`
	Registered          int64 `json:"register_count"`
	ConnectedIdentities int   `json:"connected_identities"`
}

type peerEvent struct {
	Type string `json:"type"`
	Data struct {
		SenderID uint   `json:"sender_id"`
		Content  string `json:"content"`
	} `json:"data"`
}

// Verify walks the session lifecycle end to end: two logins, a websocket for
// the receiver, one peer message delivered live, presence stats, logout.
func Verify(ctx context.Context, baseURL, prefix, password string, wait time.Duration) ([]string, error) {
	var details []string
	sender := common.NewClient(baseURL)
	receiver := common.NewClient(baseURL)

	senderID, err := sender.Login(ctx, prefix+"-sender", password)
	if err != nil {
		return details, err
	}
	receiverID, err := receiver.Login(ctx, prefix+"-receiver", password)
	if err != nil {
		return details, err
	}
	details = append(details, fmt.Sprintf("login: ok sender=%d receiver=%d", senderID, receiverID))

	ws, err := receiver.DialWS(ctx)
	if err != nil {
		return details, err
	}
	defer func() { _ = ws.Close() }()
	details = append(details, "websocket: connected")

	// The socket is registered after the upgrade completes, so poll briefly.
	var stats presenceStats
	statsDeadline := time.Now().Add(wait)
	for {
		if _, err := sender.Do(ctx, http.MethodGet, "/api/v1/stats/presence", nil, &stats); err != nil {
			return details, fmt.Errorf("presence stats: %w", err)
		}
		if stats.Online >= 2 && stats.ConnectedIdentities >= 1 {
			break
		}
		if time.Now().After(statsDeadline) {
			return details, fmt.Errorf("presence stats too low: online=%d connected=%d", stats.Online, stats.ConnectedIdentities)
		}
		time.Sleep(50 * time.Millisecond)
	}
	details = append(details, fmt.Sprintf("presence: online=%d registered=%d connected=%d", stats.Online, stats.Registered, stats.ConnectedIdentities))

	content := fmt.Sprintf("presencecheck %d", time.Now().UnixNano())
	body := map[string]any{"receiver_id": receiverID, "content": content}
	if _, err := sender.Do(ctx, http.MethodPost, "/api/v1/contacts/messages", body, nil); err != nil {
		return details, fmt.Errorf("send message: %w", err)
	}

	deadline := time.Now().Add(wait)
	for {
		_ = ws.SetReadDeadline(deadline)
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return details, fmt.Errorf("await delivery: %w", err)
		}
		var ev peerEvent
		if json.Unmarshal(raw, &ev) == nil && ev.Type == "peer_message" && ev.Data.Content == content {
			if ev.Data.SenderID != senderID {
				return details, fmt.Errorf("delivered message has sender %d, want %d", ev.Data.SenderID, senderID)
			}
			break
		}
	}
	details = append(details, "delivery: peer_message received over websocket")

	if err := sender.Logout(ctx); err != nil {
		return details, fmt.Errorf("logout: %w", err)
	}
	if err := receiver.Logout(ctx); err != nil {
		return details, fmt.Errorf("logout: %w", err)
	}
	details = append(details, "logout: ok")
	return details, nil
}
