// Package cache holds the in-memory attendance snapshots. A full
// attendance read can take minutes on a large terminal; the cache turns
// that into a sub-millisecond filtered read served from the last good
// snapshot.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

// entry is the per-device snapshot state. The records slice is immutable
// after publication: refreshes replace the reference, readers capture it
// under lock and work on it outside.
type entry struct {
	records   []device.Attendance
	fetchedAt time.Time
	count     int
	loading   bool
	lastErr   string
}

// Status is the metadata view of one entry.
type Status struct {
	DeviceKey string     `json:"device_key"`
	Cached    bool       `json:"cached"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Count     int        `json:"count"`
	Loading   bool       `json:"is_loading"`
	Error     string     `json:"error,omitempty"`
}

// Cache owns all attendance snapshots, one per device key.
type Cache struct {
	pool *device.Pool

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
}

// New builds an empty cache over the pool's devices.
func New(pool *device.Pool) *Cache {
	return &Cache{
		pool:    pool,
		entries: make(map[string]*entry),
	}
}

// Refresh fetches all attendance for key and atomically swaps in the new
// snapshot. Concurrent refreshes of the same key coalesce: the second
// caller waits for the first and observes its result. A failed fetch
// records the error on the entry and keeps the prior snapshot.
func (c *Cache) Refresh(ctx context.Context, key string) (int, error) {
	slot, err := c.pool.Client(key)
	if err != nil {
		return 0, err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.refreshSlow(ctx, key, slot)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (c *Cache) refreshSlow(ctx context.Context, key string, slot *device.Slot) (int, error) {
	// Phase 1: mark the entry loading. Held briefly.
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.loading = true
	e.lastErr = ""
	c.mu.Unlock()

	// Phase 2: slow device I/O, no cache lock held. Reads of other keys
	// and stale reads of this key proceed meanwhile.
	start := time.Now()
	var records []device.Attendance
	err := slot.WithRetry(ctx, func(sess device.Session) error {
		var rerr error
		records, rerr = sess.GetAttendance()
		return rerr
	})

	// Phase 3: publish or record the failure. Held briefly.
	c.mu.Lock()
	defer c.mu.Unlock()
	e.loading = false
	if err != nil {
		e.lastErr = err.Error()
		logger.Error("Attendance refresh failed",
			"device", key, "duration_ms", logger.Duration(start), "error", err)
		return 0, fmt.Errorf("refresh %s: %w", key, err)
	}
	e.records = records
	e.fetchedAt = time.Now()
	e.count = len(records)
	logger.Info("Attendance refreshed",
		"device", key, "records", e.count, "duration_ms", logger.Duration(start))
	return e.count, nil
}

// snapshot captures the published record list for key. ok is false when no
// refresh has ever succeeded (a recorded error alone is not a snapshot).
func (c *Cache) snapshot(key string) ([]device.Attendance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.fetchedAt.IsZero() {
		return nil, false
	}
	return e.records, true
}

// Get returns the snapshot filtered to [from, to] (inclusive, nil means
// unbounded) and sorted by timestamp. ok is false on a cache miss.
func (c *Cache) Get(key string, from, to *time.Time) ([]device.Attendance, bool) {
	records, ok := c.snapshot(key)
	if !ok {
		return nil, false
	}
	return FilterSorted(records, from, to), true
}

// Raw returns an unfiltered copy of the snapshot.
func (c *Cache) Raw(key string) ([]device.Attendance, bool) {
	records, ok := c.snapshot(key)
	if !ok {
		return nil, false
	}
	out := make([]device.Attendance, len(records))
	copy(out, records)
	return out, true
}

// Count returns the cached record count without touching the device.
func (c *Cache) Count(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.fetchedAt.IsZero() {
		return 0, false
	}
	return e.count, true
}

// Status reports entry metadata for key. Unknown keys report an uncached
// entry rather than an error; the pool is the authority on key validity.
func (c *Cache) Status(key string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(key)
}

func (c *Cache) statusLocked(key string) Status {
	st := Status{DeviceKey: key}
	e, ok := c.entries[key]
	if !ok {
		return st
	}
	st.Loading = e.loading
	st.Error = e.lastErr
	if !e.fetchedAt.IsZero() {
		st.Cached = true
		t := e.fetchedAt
		st.FetchedAt = &t
		st.Count = e.count
	}
	return st
}

// AllStatuses returns the status of every configured device, including
// ones never refreshed.
func (c *Cache) AllStatuses() map[string]Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Status)
	for _, key := range c.pool.Keys() {
		out[key] = c.statusLocked(key)
	}
	return out
}

// FilterSorted applies the cache's range filter and ordering to an
// arbitrary record list. Bounds are inclusive; nil means unbounded. The
// input is not mutated.
func FilterSorted(records []device.Attendance, from, to *time.Time) []device.Attendance {
	out := make([]device.Attendance, 0, len(records))
	for _, r := range records {
		if from != nil && r.Timestamp.Before(*from) {
			continue
		}
		if to != nil && r.Timestamp.After(*to) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
