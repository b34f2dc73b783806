package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if _, ok, err := s.Get(ctx, tokenKey); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, tokenKey, "tok"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, tokenKey)
	if err != nil || !ok || v != "tok" {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := s.Delete(ctx, tokenKey, profileKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, tokenKey); ok {
		t.Fatalf("expected token to be deleted")
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "session.json")
	s := NewFileStorage(path)

	if err := s.Set(ctx, tokenKey, "tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := s.Set(ctx, profileKey, `{"user_name":"alice"}`); err != nil {
		t.Fatalf("set profile: %v", err)
	}

	// A fresh instance reading the same path sees both entries.
	reopened := NewFileStorage(path)
	v, ok, err := reopened.Get(ctx, profileKey)
	if err != nil || !ok || v != `{"user_name":"alice"}` {
		t.Fatalf("get after reopen: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := reopened.Delete(ctx, tokenKey, profileKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, tokenKey); ok {
		t.Fatalf("expected delete to be visible through the original handle")
	}
}

func TestFileStorage_CorruptFileTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s := NewFileStorage(path)
	if _, ok, err := s.Get(ctx, tokenKey); err != nil || ok {
		t.Fatalf("corrupt store should read as empty, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, tokenKey, "tok"); err != nil {
		t.Fatalf("set over corrupt store: %v", err)
	}
}
