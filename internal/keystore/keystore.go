// Package keystore keeps per-provider API keys sealed with AES-GCM in a YAML
// file.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoSecret = errors.New("keystore secret is not set")
	ErrNotFound = errors.New("no key stored for provider")
)

type file struct {
	Version int               `yaml:"version"`
	Keys    map[string]string `yaml:"keys"`
}

type Store struct {
	path string
	aead cipher.AEAD

	mu   sync.RWMutex
	keys map[string]string
}

// Open loads the key file at path, which need not exist yet. An empty secret
// yields a store that can list providers but not seal or open keys.
func Open(path, secret string) (*Store, error) {
	s := &Store{path: path, keys: map[string]string{}}
	if secret != "" {
		aead, err := newAEAD(secret)
		if err != nil {
			return nil, err
		}
		s.aead = aead
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing keystore: %w", err)
	}
	if f.Version != 0 && f.Version != 1 {
		return nil, fmt.Errorf("unsupported keystore version %d", f.Version)
	}
	for provider, sealed := range f.Keys {
		s.keys[normalize(provider)] = sealed
	}
	return s, nil
}

func newAEAD(secret string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return aead, nil
}

// Set seals key for provider and rewrites the file.
func (s *Store) Set(provider, key string) error {
	provider = normalize(provider)
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if s.aead == nil {
		return ErrNoSecret
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(key), []byte(provider))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[provider] = base64.StdEncoding.EncodeToString(sealed)
	return s.saveLocked()
}

func (s *Store) Delete(provider string) error {
	provider = normalize(provider)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[provider]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, provider)
	}
	delete(s.keys, provider)
	return s.saveLocked()
}

// Providers lists providers with a stored key.
func (s *Store) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the plaintext key for provider.
func (s *Store) Open(provider string) (string, error) {
	provider = normalize(provider)
	s.mu.RLock()
	sealed, ok := s.keys[provider]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, provider)
	}
	if s.aead == nil {
		return "", ErrNoSecret
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding %s key: %w", provider, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("%s key is truncated", provider)
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(provider))
	if err != nil {
		return "", fmt.Errorf("opening %s key: wrong secret or corrupted file", provider)
	}
	return string(plain), nil
}

// Key satisfies the turn coordinator's key resolver. Failures read as a
// missing key.
func (s *Store) Key(provider string) (string, bool) {
	key, err := s.Open(provider)
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(file{Version: 1, Keys: s.keys})
	if err != nil {
		return fmt.Errorf("marshaling keystore: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating keystore directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing keystore: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing keystore: %w", err)
	}
	return nil
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// Resolver looks up a provider credential.
type Resolver interface {
	Key(provider string) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(provider string) (string, bool)

func (f ResolverFunc) Key(provider string) (string, bool) { return f(provider) }

// Chain tries each resolver in order.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(provider string) (string, bool) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			if key, ok := r.Key(provider); ok {
				return key, true
			}
		}
		return "", false
	})
}
