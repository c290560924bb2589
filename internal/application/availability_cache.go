package application

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// availabilityCache stores recently computed availability responses to avoid
// re-running index construction and conflict resolution for identical read
// queries while bookings remain unchanged. Mutating operations invalidate it.
type availabilityCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]availabilityCacheEntry
}

type availabilityCacheEntry struct {
	response  RoomsAvailability
	expiresAt time.Time
}

func newAvailabilityCache(ttl time.Duration, maxEntries int, now func() time.Time) *availabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &availabilityCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]availabilityCacheEntry),
	}
}

func (c *availabilityCache) Get(key string) (RoomsAvailability, bool) {
	if c == nil {
		return RoomsAvailability{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return RoomsAvailability{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return RoomsAvailability{}, false
	}
	return entry.response, true
}

func (c *availabilityCache) Store(key string, response RoomsAvailability) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = availabilityCacheEntry{response: response, expiresAt: expiry}
}

func (c *availabilityCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]availabilityCacheEntry)
	c.mu.Unlock()
}

func (c *availabilityCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *availabilityCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func buildAvailabilityCacheKey(params AvailabilityParams) string {
	roomIDs := make([]string, len(params.RoomIDs))
	copy(roomIDs, params.RoomIDs)
	sort.Strings(roomIDs)

	weekdays := make([]string, 0, len(params.Recurrence.Weekdays))
	for _, day := range params.Recurrence.Weekdays {
		weekdays = append(weekdays, day.String())
	}
	sort.Strings(weekdays)

	builder := strings.Builder{}
	builder.WriteString(params.Principal.UserID)
	builder.WriteString("|")
	if params.Principal.IsAdmin {
		builder.WriteString("admin")
	}
	builder.WriteString("|")
	builder.WriteString(strings.Join(roomIDs, ","))
	builder.WriteString("|")
	builder.WriteString(params.Start.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(params.End.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(params.Recurrence.Frequency.String())
	builder.WriteString("|")
	builder.WriteString(strconv.Itoa(params.Recurrence.Interval))
	builder.WriteString("|")
	builder.WriteString(strings.Join(weekdays, ","))
	return builder.String()
}
