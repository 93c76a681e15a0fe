package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestGet_ExpiredNeverReturned(t *testing.T) {
	mock := clock.NewMock()
	c := NewWithClock[string](mock)

	c.Set("price_abc", "0.002", 60*time.Second)

	if v, ok := c.Get("price_abc"); !ok || v != "0.002" {
		t.Fatalf("expected fresh value, got %q ok=%v", v, ok)
	}

	mock.Add(59 * time.Second)
	if _, ok := c.Get("price_abc"); !ok {
		t.Fatal("value expired before its ttl")
	}

	mock.Add(1 * time.Second)
	if v, ok := c.Get("price_abc"); ok {
		t.Fatalf("expired value returned: %q", v)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after expiry, got %d entries", c.Len())
	}
}

func TestSet_LastWriterWins(t *testing.T) {
	mock := clock.NewMock()
	c := NewWithClock[int](mock)

	c.Set("k", 1, time.Minute)
	c.Set("k", 2, time.Minute)

	if v, _ := c.Get("k"); v != 2 {
		t.Errorf("expected last write to win, got %d", v)
	}
}

func TestSet_NonPositiveTTLIgnored(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, 0)
	if _, ok := c.Get("k"); ok {
		t.Error("zero ttl entry must not be stored")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(fmt.Sprintf("k%d", n%5), n, time.Minute)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("k%d", n%5))
		}(i)
	}
	wg.Wait()

	// Every surviving value must be one that some writer actually stored.
	for i := 0; i < 5; i++ {
		if v, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			if v < 0 || v >= 50 || v%5 != i {
				t.Errorf("torn or foreign value %d under key k%d", v, i)
			}
		}
	}
}

func TestPurge(t *testing.T) {
	mock := clock.NewMock()
	c := NewWithClock[int](mock)

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	mock.Add(2 * time.Second)
	c.Purge()

	if _, ok := c.Get("short"); ok {
		t.Error("expired entry survived purge")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("live entry removed by purge")
	}
}
