// Package kv provides the durable key-value storage used to rehydrate client
// state across restarts.
package kv

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Storage errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
	ErrClosed     = errors.New("storage closed")
)

// Storage is a byte-oriented key-value store.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}

const namespacePrefix = "tribe"

// Namespace derives the key prefix for one remote server so that timelines
// fetched from different servers never share keys.
func Namespace(baseURL string) string {
	normalized := strings.TrimRight(strings.TrimSpace(strings.ToLower(baseURL)), "/")
	sum := blake2b.Sum256([]byte(normalized))
	return namespacePrefix + "/" + hex.EncodeToString(sum[:])[:12]
}

// Key joins a namespace and a name.
func Key(namespace, name string) string {
	return path.Join(namespace, name)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
