package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MOCKTALK_API_BASE_URL", "https://api.example.com/api/")
	t.Setenv("RENEWAL_LEAD", "90s")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("STATE_PATH", "/tmp/mocktalk-state")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS_ENABLED", "yes")

	cfg := Load()
	if cfg.APIBaseURL != "https://api.example.com/api" {
		t.Fatalf("unexpected base url %q", cfg.APIBaseURL)
	}
	if cfg.RenewalLead != 90*time.Second {
		t.Fatalf("unexpected lead %s", cfg.RenewalLead)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("invalid duration must fall back to default, got %s", cfg.RequestTimeout)
	}
	if cfg.HistoryPath != filepath.Join("/tmp/mocktalk-state", "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath)
	}

	redis := cfg.Redis()
	if redis.Addr != "localhost:6379" || redis.DB != 2 || !redis.TLSEnabled || redis.Prefix != "mocktalk" {
		t.Fatalf("unexpected redis config %+v", redis)
	}
}
