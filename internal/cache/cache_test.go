// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// testValkey starts an in-process Redis server and a client bound to it.
func testValkey(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestConnectValkey(t *testing.T) {
	mr, _ := testValkey(t)

	client, err := ConnectValkey(context.Background(), mr.Addr(), "")
	if err != nil {
		t.Fatalf("ConnectValkey() error: %v", err)
	}
	client.Close()
}

func TestConnectValkey_BadAddress(t *testing.T) {
	_, err := ConnectValkey(context.Background(), "127.0.0.1:1", "")
	if err == nil {
		t.Fatal("expected error for unreachable address")
	}
}

func TestBuildCache_GetSet(t *testing.T) {
	mr, client := testValkey(t)
	bc := NewBuildCache(client, "site", time.Hour)
	ctx := context.Background()

	if _, ok := bc.Get(ctx, "css/main.scss"); ok {
		t.Fatal("expected miss on empty cache")
	}

	bc.Set(ctx, "css/main.scss", "abc123")

	got, ok := bc.Get(ctx, "css/main.scss")
	if !ok || got != "abc123" {
		t.Fatalf("Get() = %q, %v; want abc123, true", got, ok)
	}

	if !mr.Exists("asset:site:css/main.scss") {
		t.Error("record should be stored under the namespaced key")
	}
	if ttl := mr.TTL("asset:site:css/main.scss"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}
}

func TestBuildCache_DefaultTTL(t *testing.T) {
	mr, client := testValkey(t)
	bc := NewBuildCache(client, "site", 0)

	bc.Set(context.Background(), "a.txt", "x")
	if ttl := mr.TTL("asset:site:a.txt"); ttl != DefaultTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultTTL)
	}
}

func TestBuildCache_Expiry(t *testing.T) {
	mr, client := testValkey(t)
	bc := NewBuildCache(client, "site", time.Minute)
	ctx := context.Background()

	bc.Set(ctx, "img/logo.png", "fp")
	mr.FastForward(2 * time.Minute)

	if _, ok := bc.Get(ctx, "img/logo.png"); ok {
		t.Error("record should have expired")
	}
}

func TestBuildCache_ServerDown(t *testing.T) {
	mr, client := testValkey(t)
	bc := NewBuildCache(client, "site", time.Minute)
	mr.Close()

	ctx := context.Background()
	bc.Set(ctx, "a", "b") // must not panic
	if _, ok := bc.Get(ctx, "a"); ok {
		t.Error("Get() should report a miss when the server is down")
	}
}

func TestBuildCache_Purge(t *testing.T) {
	mr, client := testValkey(t)
	ctx := context.Background()

	site := NewBuildCache(client, "site", time.Hour)
	other := NewBuildCache(client, "other", time.Hour)
	for _, k := range []string{"a", "b", "c"} {
		site.Set(ctx, k, "1")
	}
	other.Set(ctx, "a", "1")

	n, err := site.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Purge() deleted %d keys, want 3", n)
	}
	if !mr.Exists("asset:other:a") {
		t.Error("Purge() must not touch other namespaces")
	}
}

func TestBuildCache_PurgeGlobCharacters(t *testing.T) {
	mr, client := testValkey(t)
	ctx := context.Background()

	tests := []struct {
		namespace string
		neighbour string // would match if the namespace were used as a raw pattern
	}{
		{`/srv/[site]`, `/srv/s`},
		{`/srv/a*`, `/srv/abc`},
		{`/srv/a?c`, `/srv/abc`},
		{`C:\sites\x`, `C:sitesx`},
	}
	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			mr.FlushAll()
			own := NewBuildCache(client, tt.namespace, time.Hour)
			other := NewBuildCache(client, tt.neighbour, time.Hour)
			own.Set(ctx, "a", "1")
			own.Set(ctx, "b", "1")
			other.Set(ctx, "a", "1")

			n, err := own.Purge(ctx)
			if err != nil {
				t.Fatalf("Purge() error: %v", err)
			}
			if n != 2 {
				t.Errorf("Purge() deleted %d keys, want 2", n)
			}
			if !mr.Exists("asset:" + tt.neighbour + ":a") {
				t.Errorf("Purge() deleted a key of namespace %q", tt.neighbour)
			}
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	if got, want := escapeGlob(`a*b?c[d]e\f`), `a\*b\?c\[d\]e\\f`; got != want {
		t.Errorf("escapeGlob() = %q, want %q", got, want)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss")
	}
	m.Set(ctx, "k", "v")
	if v, ok := m.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("ab"), []byte("c"))
	b := Fingerprint([]byte("a"), []byte("bc"))
	if a == b {
		t.Error("length prefixing should distinguish part boundaries")
	}
	if a != Fingerprint([]byte("ab"), []byte("c")) {
		t.Error("fingerprint must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}
