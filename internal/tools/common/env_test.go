package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestLoadEnvFileKeepsProcessEnvironment(t *testing.T) {
	t.Setenv("HUB_BASE_URL", "http://from-env")
	file := filepath.Join(t.TempDir(), "hub.env")
	content := "# presencecheck\nHUB_BASE_URL=http://from-file\nHUB_USER=alice\nHUB_PASSWORD='s3cret'\nNOT_AN_ASSIGNMENT\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("HUB_USER")
		_ = os.Unsetenv("HUB_PASSWORD")
	})

	if err := LoadEnvFile(file); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("HUB_BASE_URL"); got != "http://from-env" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if got := os.Getenv("HUB_USER"); got != "alice" {
		t.Fatalf("unexpected HUB_USER=%q", got)
	}
	if got := os.Getenv("HUB_PASSWORD"); got != "s3cret" {
		t.Fatalf("expected quotes stripped, got %q", got)
	}
}

func TestLoadEnvFileDirectoryFails(t *testing.T) {
	if err := LoadEnvFile(t.TempDir()); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}

func TestWriteCIResult(t *testing.T) {
	var buf bytes.Buffer
	WriteCIResult(&buf, false, "presencecheck run", []string{"login: ok"}, errors.New("ws closed"))

	var res CIResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode ci result: %v", err)
	}
	if res.OK || res.Check != "presencecheck run" || res.Error != "ws closed" || len(res.Details) != 1 {
		t.Fatalf("unexpected ci result: %+v", res)
	}
}

func FuzzLoadEnvFileRobustness(f *testing.F) {
	f.Add([]byte("KEY=value\nANOTHER=ok\n"))
	f.Add([]byte("INVALID_LINE\n# comment\n QUOTED = \"x\" \n"))
	f.Add([]byte("NO_EQUALS_LINE\nBROKEN"))
	f.Add(bytes.Repeat([]byte("A"), 70000))

	f.Fuzz(func(t *testing.T, content []byte) {
		if len(content) > 200000 {
			content = content[:200000]
		}
		file := filepath.Join(t.TempDir(), "fuzz.env")
		if err := os.WriteFile(file, content, 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}

		class := func(err error) string {
			switch {
			case err == nil:
				return "none"
			case strings.Contains(err.Error(), "open env file:"):
				return "open"
			case strings.Contains(err.Error(), "read env file:"):
				return "read"
			default:
				return "other"
			}
		}
		first, second := class(LoadEnvFile(file)), class(LoadEnvFile(file))
		if first != second {
			t.Fatalf("error class must be deterministic: %q vs %q", first, second)
		}
		if first == "other" {
			t.Fatalf("unexpected error class for %q", content)
		}
	})
}
