// Package cache stores raw data-service and AI responses keyed by a hash of
// the request that produced them. Entries are write-once and never expire.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
)

// Namespaces separate data-service responses from AI responses.
const (
	NamespaceHTTP = "http"
	NamespaceAI   = "ai"
)

// promptDelimiter separates system and user text in prompt keys. It never
// appears in either part.
const promptDelimiter = "\x00"

// Store is a key to blob store. Implementations are safe for concurrent use;
// concurrent writes to the same key are resolved by last writer wins.
type Store interface {
	// Get returns the blob for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key.
	Put(ctx context.Context, key string, value []byte) error
	// Close releases the store's resources.
	Close() error
}

// URLKey derives the cache key of a fully resolved request URL.
func URLKey(url string) string {
	return hash(url)
}

// PromptKey derives the cache key of an AI request.
func PromptKey(system, user string) string {
	return hash(system + promptDelimiter + user)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Nop is the store used when caching is disabled: every lookup misses and
// writes are discarded.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Put discards value.
func (Nop) Put(context.Context, string, []byte) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
