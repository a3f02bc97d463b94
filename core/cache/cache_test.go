package cache

import (
	"sync"
	"testing"
)

func TestLRU_AddGet(t *testing.T) {
	c := New[uint32, string](3)

	c.Add(1, "header backup")
	c.Add(2, "space tree")
	c.Add(4, "catalog")

	tests := []struct {
		key    uint32
		want   string
		wantOK bool
	}{
		{1, "header backup", true},
		{4, "catalog", true},
		{9, "", false},
	}
	for _, tt := range tests {
		got, ok := c.Get(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Get(%d) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
	if n := c.Stats().Size; n != 3 {
		t.Errorf("Size = %d; want 3", n)
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[uint32, int](2)

	if c.Add(1, 1) || c.Add(2, 2) {
		t.Fatal("Add reported eviction below capacity")
	}
	c.Get(1) // 2 is now the oldest
	if !c.Add(3, 3) {
		t.Fatal("Add(3) did not evict")
	}

	if _, ok := c.Get(2); ok {
		t.Error("key 2 survived eviction")
	}
	for _, k := range []uint32{1, 3} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("key %d was evicted", k)
		}
	}
}

func TestLRU_Replace(t *testing.T) {
	c := New[uint32, int](2)
	c.Add(1, 1)
	if c.Add(1, 2) {
		t.Error("replacing a key reported eviction")
	}
	if v, _ := c.Get(1); v != 2 {
		t.Errorf("Get(1) = %d; want 2", v)
	}
	if n := c.Stats().Size; n != 1 {
		t.Errorf("Size = %d; want 1", n)
	}
}

func TestLRU_Stats(t *testing.T) {
	c := New[uint32, int](2)

	c.Add(1, 1)
	c.Add(2, 2)
	c.Get(1)
	c.Get(2)
	c.Get(3)
	c.Add(3, 3)

	want := Stats{Hits: 2, Misses: 1, Evictions: 1, Size: 2, Capacity: 2}
	if got := c.Stats(); got != want {
		t.Errorf("Stats() = %+v; want %+v", got, want)
	}

	c.Purge()
	if got := c.Stats(); got.Size != 0 || got.Hits != 2 {
		t.Errorf("Stats() after Purge = %+v", got)
	}
	if _, ok := c.Get(2); ok {
		t.Error("Get(2) found an entry after Purge")
	}
}

func TestLRU_Unbounded(t *testing.T) {
	c := New[int, int](-1)
	for i := 0; i < 500; i++ {
		if c.Add(i, i) {
			t.Fatalf("Add(%d) evicted in an unbounded cache", i)
		}
	}
	if got := c.Stats(); got.Size != 500 || got.Capacity != 0 {
		t.Errorf("Stats() = %+v; want Size 500, Capacity 0", got)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	const capacity = 100
	c := New[int, int](capacity)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(id*100+j, j)
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get(id*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if n := c.Stats().Size; n > capacity {
		t.Errorf("Size = %d; want <= %d", n, capacity)
	}
}
