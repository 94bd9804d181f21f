package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("CHAT_POLL_WAIT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.PollWait != 25*time.Second {
		t.Errorf("PollWait = %v, want 25s", cfg.PollWait)
	}
	if cfg.SnapshotLimit != 80 || cfg.SnapshotMax != 500 {
		t.Errorf("snapshot limits = %d/%d, want 80/500", cfg.SnapshotLimit, cfg.SnapshotMax)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty (bridge disabled)", cfg.RedisAddr)
	}
}

func TestLoadPollWait(t *testing.T) {
	t.Setenv("CHAT_POLL_WAIT", "3s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PollWait != 3*time.Second {
		t.Errorf("PollWait = %v, want 3s", cfg.PollWait)
	}

	t.Setenv("CHAT_POLL_WAIT", "banana")
	if _, err := Load(); err == nil {
		t.Error("expected error for unparseable CHAT_POLL_WAIT")
	}
}

func TestLoadSnapshotLimitValidation(t *testing.T) {
	t.Setenv("CHAT_SNAPSHOT_LIMIT", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for CHAT_SNAPSHOT_LIMIT below 1")
	}
	t.Setenv("CHAT_SNAPSHOT_LIMIT", "900")
	t.Setenv("CHAT_SNAPSHOT_MAX", "500")
	if _, err := Load(); err == nil {
		t.Error("expected error for CHAT_SNAPSHOT_LIMIT above max")
	}
}
