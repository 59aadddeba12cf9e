package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestFreshnessPolicyIsStale(t *testing.T) {
	policy := NewFreshnessPolicy(15 * time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	metadata := "cache/repo/no/nav/foo/bar/maven-metadata.xml"
	artifact := "cache/repo/no/nav/foo/bar/1.0/bar-1.0.jar"

	testCases := []struct {
		name  string
		key   string
		age   time.Duration
		stale bool
	}{
		{"metadata fresh", metadata, 14 * time.Minute, false},
		{"metadata at window", metadata, 15 * time.Minute, false},
		{"metadata stale", metadata, 16 * time.Minute, true},
		{"artifact never stale", artifact, 365 * 24 * time.Hour, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.IsStale(tc.key, now.Add(-tc.age), now); got != tc.stale {
				t.Fatalf("IsStale(%s, age=%s) = %v, want %v", tc.key, tc.age, got, tc.stale)
			}
		})
	}
}

func TestNewFreshnessPolicyDefaults(t *testing.T) {
	if got := NewFreshnessPolicy(0).MetadataTTL; got != DefaultMetadataTTL {
		t.Fatalf("expected default ttl, got %s", got)
	}
}

func TestCacheExistsDeletesStaleMetadata(t *testing.T) {
	store := newTestStore(t)
	c := NewCache(store, NewFreshnessPolicy(15*time.Minute), nil)
	now := time.Now().UTC()
	c.now = func() time.Time { return now }

	key := Key("repo", "no/nav/foo/bar/maven-metadata.xml")
	putObjectAt(t, store, cachePrefix+key, "<metadata/>", now.Add(-16*time.Minute))

	exists, err := c.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists error: %v", err)
	}
	if exists {
		t.Fatalf("stale metadata should be treated as absent")
	}
	if _, err := store.Stat(context.Background(), cachePrefix+key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale metadata should be deleted, got %v", err)
	}
}

func TestCacheExistsKeepsFreshMetadata(t *testing.T) {
	store := newTestStore(t)
	c := NewCache(store, NewFreshnessPolicy(15*time.Minute), nil)
	now := time.Now().UTC()
	c.now = func() time.Time { return now }

	key := Key("repo", "no/nav/foo/bar/maven-metadata.xml")
	putObjectAt(t, store, cachePrefix+key, "<metadata/>", now.Add(-14*time.Minute))

	exists, err := c.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists error: %v", err)
	}
	if !exists {
		t.Fatalf("fresh metadata should be present")
	}
	if _, err := store.Stat(context.Background(), cachePrefix+key); err != nil {
		t.Fatalf("fresh metadata must not be deleted: %v", err)
	}
}

func TestCacheExistsNeverExpiresArtifacts(t *testing.T) {
	store := newTestStore(t)
	c := NewCache(store, NewFreshnessPolicy(15*time.Minute), nil)
	now := time.Now().UTC()
	c.now = func() time.Time { return now }

	key := Key("repo", "no/nav/foo/bar/1.0/bar-1.0.jar")
	putObjectAt(t, store, cachePrefix+key, "jar", now.Add(-2*365*24*time.Hour))

	exists, err := c.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists error: %v", err)
	}
	if !exists {
		t.Fatalf("versioned artifacts never expire")
	}
}

func TestCacheWriteThenRead(t *testing.T) {
	store := newTestStore(t)
	c := NewCache(store, NewFreshnessPolicy(0), nil)
	ctx := context.Background()
	key := Key("repo", "no/nav/foo/bar/1.0/bar-1.0.pom")

	exists, err := c.Exists(ctx, key)
	if err != nil || exists {
		t.Fatalf("expected miss, got exists=%v err=%v", exists, err)
	}

	w, err := c.Write(ctx, key)
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if _, err := w.Write([]byte("<project/>")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("commit error: %v", err)
	}

	exists, err = c.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("expected hit after commit, got exists=%v err=%v", exists, err)
	}

	result, err := c.Read(ctx, key)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	defer result.Reader.Close()
	body, _ := io.ReadAll(result.Reader)
	if string(body) != "<project/>" {
		t.Fatalf("unexpected body %s", body)
	}
	if result.Entry.Key != "cache/repo/no/nav/foo/bar/1.0/bar-1.0.pom" {
		t.Fatalf("entry should live under cache prefix, got %s", result.Entry.Key)
	}
}

func TestCacheReadMissing(t *testing.T) {
	c := NewCache(newTestStore(t), NewFreshnessPolicy(0), nil)
	if _, err := c.Read(context.Background(), Key("repo", "missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("repo", "no/nav/a/b/1/f.jar"); got != "repo/no/nav/a/b/1/f.jar" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestCacheRejectsKeysEscapingPrefix(t *testing.T) {
	store := newTestStore(t)
	c := NewCache(store, NewFreshnessPolicy(15*time.Minute), nil)
	now := time.Now().UTC()
	c.now = func() time.Time { return now }

	putObjectAt(t, store, "credentials/github-token", "secret", now.Add(-time.Hour))
	putObjectAt(t, store, "credentials/maven-metadata.xml", "<old/>", now.Add(-time.Hour))

	keys := []string{
		Key("x", "../../credentials/github-token"),
		Key("x", "../../credentials/maven-metadata.xml"),
		Key("..", "credentials/github-token"),
		Key("x", "a//b"),
		"",
	}
	ctx := context.Background()
	for _, key := range keys {
		if _, err := c.Exists(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Exists(%q) expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := c.Read(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Read(%q) expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := c.Write(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Write(%q) expected ErrInvalidKey, got %v", key, err)
		}
	}
	if _, err := store.Stat(ctx, "credentials/maven-metadata.xml"); err != nil {
		t.Fatalf("objects outside cache/ must not be evicted: %v", err)
	}
}
