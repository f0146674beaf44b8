package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func exerciseKeyValue(t *testing.T, kv KeyValue) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := kv.Set(ctx, "user_profile", `{"name":"Ana"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set(ctx, "user_profile", `{"name":"Ray"}`); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	got, ok, err := kv.Get(ctx, "user_profile")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if got != `{"name":"Ray"}` {
		t.Fatalf("expected last write to win, got %q", got)
	}

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseKeyValue(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tutor.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	exerciseKeyValue(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tutor.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	if err := s.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	v, ok, err := s.Get(context.Background(), "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	r, err := NewRedis(url)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	exerciseKeyValue(t, Scoped(r, "test-"+t.Name()))
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedis("://not-a-url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestScopedIsolatesNamespaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parent := NewMemory()
	a := Scoped(parent, "anon_a")
	b := Scoped(parent, "anon_b")

	if err := a.Set(ctx, "user_profile", "A"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "user_profile"); ok {
		t.Fatal("expected namespace b to be empty")
	}
	if v, ok, _ := parent.Get(ctx, "anon_a:user_profile"); !ok || v != "A" {
		t.Fatalf("expected prefixed key in parent, got %q ok=%v", v, ok)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("scoped Close failed: %v", err)
	}
	if err := parent.Ping(ctx); err != nil {
		t.Fatalf("parent should remain usable: %v", err)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	kv, err := Open("memory", "", "")
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := kv.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", kv)
	}

	kv, err = Open("sqlite", filepath.Join(t.TempDir(), "tutor.db"), "")
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	_ = kv.Close()

	if _, err := Open("etcd", "", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
