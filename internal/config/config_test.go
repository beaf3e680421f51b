package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.TokenTTL != 168*time.Hour {
		t.Fatalf("expected 7 day token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.RelayTimeout != 30*time.Second {
		t.Fatalf("expected 30s relay timeout, got %s", cfg.RelayTimeout)
	}
	if got := cfg.RetryStatuses(); !reflect.DeepEqual(got, []int{429, 502, 503}) {
		t.Fatalf("unexpected retry statuses %v", got)
	}
	if cfg.RejectedTokenTTL != time.Minute {
		t.Fatalf("expected 1m rejected token ttl, got %s", cfg.RejectedTokenTTL)
	}
}

func TestLoadFileEnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	content := "HTTP_ADDR=:9000\nWS_HEARTBEAT_TIMEOUT=45s\nRELAY_RETRY_STATUSES=429, 500\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := LoadFile(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("expected env to win, got %q", cfg.HTTPAddr)
	}
	if cfg.WSHeartbeatTimeout != 45*time.Second {
		t.Fatalf("expected heartbeat from file, got %s", cfg.WSHeartbeatTimeout)
	}
	if got := cfg.RetryStatuses(); !reflect.DeepEqual(got, []int{429, 500}) {
		t.Fatalf("unexpected retry statuses %v", got)
	}
}

func TestLoadFileEmptyRetryStatusesDisableFailover(t *testing.T) {
	t.Setenv("RELAY_RETRY_STATUSES", "")
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := cfg.RetryStatuses()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty non-nil retry list, got %#v", got)
	}
}

func TestLoadFileRejectsInvalidValues(t *testing.T) {
	t.Run("bad status list", func(t *testing.T) {
		t.Setenv("RELAY_RETRY_STATUSES", "429,nope")
		_, err := LoadFile("")
		if err == nil || classifyConfigLoadError(err) != "parse" {
			t.Fatalf("expected parse error, got %v", err)
		}
	})
	t.Run("non positive heartbeat", func(t *testing.T) {
		t.Setenv("WS_HEARTBEAT_TIMEOUT", "0s")
		_, err := LoadFile("")
		if err == nil || !strings.Contains(err.Error(), "WS_HEARTBEAT_TIMEOUT") {
			t.Fatalf("expected heartbeat validation error, got %v", err)
		}
		if classifyConfigLoadError(err) != "validation" {
			t.Fatalf("expected validation class, got %q", classifyConfigLoadError(err))
		}
	})
}

func TestParseStatusList(t *testing.T) {
	got, err := ParseStatusList(" 429 ,, 503")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, []int{429, 503}) {
		t.Fatalf("unexpected statuses %v", got)
	}
	if _, err := ParseStatusList("700"); err == nil {
		t.Fatal("expected out of range error")
	}
}
