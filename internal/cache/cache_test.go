package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/estately/internal/clock"
)

func TestTTLCacheExpiry(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTTLCache[string, int](fake.Now)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}

	fake.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to expire")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b to persist without ttl")
	}
}

func TestTTLCacheDeleteFunc(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set(Key("category", "1"), "x", time.Minute)
	c.Set(Key("category", "2"), "y", time.Minute)
	c.Set(Key("currency", "1"), "z", time.Minute)

	c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, "category|") })

	if _, ok := c.Get(Key("category", "1")); ok {
		t.Fatalf("expected category entries to be removed")
	}
	if _, ok := c.Get(Key("currency", "1")); !ok {
		t.Fatalf("expected currency entry to remain")
	}

	c.Purge()
	if _, ok := c.Get(Key("currency", "1")); ok {
		t.Fatalf("expected purge to clear everything")
	}
}

func TestKeyNormalizes(t *testing.T) {
	if got := Key(" Category ", "", "42"); got != "category|42" {
		t.Fatalf("unexpected key %q", got)
	}
}
