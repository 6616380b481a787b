// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// assetKeyPrefix is the Valkey key prefix for build records.
	assetKeyPrefix = "asset:"

	// DefaultTTL is how long a build record is kept without being refreshed.
	DefaultTTL = 30 * 24 * time.Hour
)

// Store persists build fingerprints. Misses and backend errors both report
// ok=false; a cache failure only costs a rebuild.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// BuildCache is a Valkey-backed Store.
type BuildCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewBuildCache creates a build cache. namespace separates projects sharing
// one Valkey instance (typically the output directory).
func NewBuildCache(client *redis.Client, namespace string, ttl time.Duration) *BuildCache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &BuildCache{client: client, namespace: namespace, ttl: ttl}
}

func (bc *BuildCache) key(k string) string {
	return assetKeyPrefix + bc.namespace + ":" + k
}

// Get retrieves the fingerprint recorded for key.
func (bc *BuildCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := bc.client.Get(ctx, bc.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("build cache get error", "key", key, "error", err)
		return "", false
	}
	return val, true
}

// Set records the fingerprint for key with the configured TTL.
func (bc *BuildCache) Set(ctx context.Context, key, value string) {
	if err := bc.client.Set(ctx, bc.key(key), value, bc.ttl).Err(); err != nil {
		slog.Warn("build cache set error", "key", key, "error", err)
	}
}

// Purge removes every record in the namespace by scanning for the prefix.
// It returns the number of deleted keys.
func (bc *BuildCache) Purge(ctx context.Context) (int, error) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := bc.client.Scan(ctx, cursor, escapeGlob(bc.key(""))+"*", 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := bc.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("build cache purged", "namespace", bc.namespace, "deleted", deleted)
	}
	return deleted, nil
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]string)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	return v, ok
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = value
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Fingerprint hashes parts into a hex SHA-256 digest. Parts are length
// prefixed so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
