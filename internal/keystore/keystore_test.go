package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSealAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "keys.yaml")
	s, err := Open(path, "hunter2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("OpenAI", "sk-test-123"); err != nil {
		t.Fatalf("set: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if strings.Contains(string(data), "sk-test-123") {
		t.Fatal("expected key to be sealed on disk")
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	reopened, err := Open(path, "hunter2")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	key, ok := reopened.Key("openai")
	if !ok || key != "sk-test-123" {
		t.Fatalf("expected sk-test-123, got %q (%v)", key, ok)
	}
	if got := reopened.Providers(); len(got) != 1 || got[0] != "openai" {
		t.Fatalf("expected [openai], got %v", got)
	}
}

func TestWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	s, _ := Open(path, "right")
	if err := s.Set("google", "g-key"); err != nil {
		t.Fatalf("set: %v", err)
	}

	wrong, err := Open(path, "wrong")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := wrong.Open("google"); err == nil {
		t.Fatal("expected wrong secret to fail")
	}
	if _, ok := wrong.Key("google"); ok {
		t.Fatal("expected Key to report missing under the wrong secret")
	}
}

func TestNoSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	s, _ := Open(path, "")
	if err := s.Set("google", "g-key"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	s, _ := Open(path, "secret")
	s.Set("anthropic", "a-key")

	if err := s.Delete("anthropic"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("anthropic"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	reopened, _ := Open(path, "secret")
	if len(reopened.Providers()) != 0 {
		t.Fatalf("expected no providers, got %v", reopened.Providers())
	}
}

func TestSealedKeyBoundToProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	s, _ := Open(path, "secret")
	s.Set("openai", "o-key")

	// Moving a sealed value under another provider must not decrypt.
	s.keys["deepseek"] = s.keys["openai"]
	if _, err := s.Open("deepseek"); err == nil {
		t.Fatal("expected sealed key to be bound to its provider")
	}
}

func TestChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	s, _ := Open(path, "secret")
	s.Set("openai", "stored")

	env := ResolverFunc(func(provider string) (string, bool) {
		if provider == "openai" || provider == "google" {
			return "from-env", true
		}
		return "", false
	})
	r := Chain(s, nil, env)

	tests := []struct {
		provider string
		want     string
		ok       bool
	}{
		{"openai", "stored", true},
		{"google", "from-env", true},
		{"anthropic", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			got, ok := r.Key(tt.provider)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("expected %q/%v, got %q/%v", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestOpenRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	os.WriteFile(path, []byte("version: 9\nkeys: {}\n"), 0o600)
	if _, err := Open(path, "secret"); err == nil {
		t.Fatal("expected unsupported version error")
	}
	os.WriteFile(path, []byte("keys: [unclosed"), 0o600)
	if _, err := Open(path, "secret"); err == nil {
		t.Fatal("expected parse error")
	}
}
