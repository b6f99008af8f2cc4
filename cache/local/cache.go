package local

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// ErrNotInteger is returned by Incr when the stored value is not an integer.
var ErrNotInteger = errors.New("cache: value is not an integer")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

type entry struct {
	data     string
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

type zEntry struct {
	member string
	score  float64
}

// LocalCache is an in-process cache for single-node deployments and tests.
type LocalCache struct {
	mu    sync.Mutex
	kv    map[string]*entry
	zsets map[string][]zEntry // ascending by score, then member
	lists map[string][]string

	gcInterval time.Duration
	stopGC     chan struct{}
	closeOnce  sync.Once
}

// NewCache creates a LocalCache and starts the background expiry sweep.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		kv:         make(map[string]*entry),
		zsets:      make(map[string][]zEntry),
		lists:      make(map[string][]string),
		gcInterval: interval,
		stopGC:     make(chan struct{}),
	}
	go c.runGC()
	return c, nil
}

// Close stops the background sweep.
func (c *LocalCache) Close() {
	c.closeOnce.Do(func() { close(c.stopGC) })
}

func (c *LocalCache) runGC() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.kv {
				if e.expired(now) {
					delete(c.kv, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopGC:
			return
		}
	}
}

// live returns the entry for key or nil. Caller holds c.mu.
func (c *LocalCache) live(key string) *entry {
	e, ok := c.kv[key]
	if !ok {
		return nil
	}
	if e.expired(time.Now()) {
		delete(c.kv, key)
		return nil
	}
	return e
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.live(key)
	if e == nil {
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := &entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.kv[key] = e
	c.mu.Unlock()
	return nil
}

// Del removes keys of any type.
func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.kv, k)
		delete(c.zsets, k)
		delete(c.lists, k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live(key) != nil {
		return true, nil
	}
	_, z := c.zsets[key]
	_, l := c.lists[key]
	return z || l, nil
}

func (c *LocalCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.live(key)
	if e == nil {
		return ErrNotFound
	}
	e.expireAt = time.Now().Add(ttl)
	return nil
}

// Incr adds one to the integer stored at key, starting from zero.
func (c *LocalCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	e := c.live(key)
	if e != nil {
		v, err := strconv.ParseInt(e.data, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = v
	} else {
		e = &entry{}
		c.kv[key] = e
	}
	n++
	e.data = strconv.FormatInt(n, 10)
	return n, nil
}

// ---- ZSet ----

func (c *LocalCache) ZAdd(_ context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.zsets[key]
	found := false
	for i := range entries {
		if entries[i].member == member {
			entries[i].score = score
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, zEntry{member: member, score: score})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].score != entries[b].score {
			return entries[a].score < entries[b].score
		}
		return entries[a].member < entries[b].member
	})
	c.zsets[key] = entries
	return nil
}

// ZRange returns members from lowest to highest score.
func (c *LocalCache) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.zsets[key]
	lo, hi, ok := bounds(int64(len(entries)), start, stop)
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, entries[i].member)
	}
	return out, nil
}

func (c *LocalCache) ZScore(_ context.Context, key, member string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.zsets[key] {
		if e.member == member {
			return e.score, nil
		}
	}
	return 0, ErrNotFound
}

// ---- List ----

// LPush prepends values one by one, so the last value ends up at the head.
func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.lists[key]
	head := make([]string, 0, len(values)+len(list))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, values[i])
	}
	c.lists[key] = append(head, list...)
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.lists[key]
	lo, hi, ok := bounds(int64(len(list)), start, stop)
	if !ok {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, list[lo:hi+1])
	return out, nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.lists[key]
	lo, hi, ok := bounds(int64(len(list)), start, stop)
	if !ok {
		delete(c.lists, key)
		return nil
	}
	c.lists[key] = append([]string(nil), list[lo:hi+1]...)
	return nil
}

// bounds resolves redis-style inclusive indexes, where negatives count from the end.
func bounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
