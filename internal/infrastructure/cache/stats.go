package cache

import (
	"sort"
	"time"
)

// EntryInfo описывает запись кэша для мониторинга
type EntryInfo struct {
	Key              string    `json:"key"`
	State            State     `json:"state"`
	FetchedAt        time.Time `json:"fetched_at,omitempty"`
	AgeSeconds       int       `json:"age_seconds"`
	FreshInSeconds   int       `json:"fresh_in_seconds"`
	EvictedInSeconds int       `json:"evicted_in_seconds"`
	Revalidating     bool      `json:"revalidating"`
}

// Stats агрегированная статистика кэша
type Stats struct {
	TotalEntries    int         `json:"total_entries"`
	FreshEntries    int         `json:"fresh_entries"`
	StaleEntries    int         `json:"stale_entries"`
	Hits            uint64      `json:"hits"`
	Misses          uint64      `json:"misses"`
	StaleServed     uint64      `json:"stale_served"`
	HitRate         float64     `json:"hit_rate"`
	FreshTTLSeconds int         `json:"fresh_ttl_seconds"`
	EvictTTLSeconds int         `json:"evict_ttl_seconds"`
	Entries         []EntryInfo `json:"entries"`
}

// GetStats возвращает статистику кэша для мониторинга
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{
		TotalEntries:    len(c.entries),
		Hits:            c.hits,
		Misses:          c.misses,
		StaleServed:     c.staleServed,
		FreshTTLSeconds: int(c.freshTTL.Seconds()),
		EvictTTLSeconds: int(c.evictTTL.Seconds()),
	}

	total := c.hits + c.misses
	if total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	entries := make([]EntryInfo, 0, len(c.entries))
	for key, e := range c.entries {
		state := c.stateOf(e, now)
		info := EntryInfo{
			Key:          key,
			State:        state,
			Revalidating: e.flight != nil,
		}
		if e.hasValue {
			info.FetchedAt = e.fetchedAt
			info.AgeSeconds = int(now.Sub(e.fetchedAt).Seconds())
			if fresh := int(e.freshUntil.Sub(now).Seconds()); fresh > 0 {
				info.FreshInSeconds = fresh
			}
			if evict := int(e.evictAt.Sub(now).Seconds()); evict > 0 {
				info.EvictedInSeconds = evict
			}
		}
		switch state {
		case StateFresh:
			stats.FreshEntries++
		case StateStale:
			stats.StaleEntries++
		}
		entries = append(entries, info)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	stats.Entries = entries
	return stats
}

// Clear полностью очищает кэш (инвалидация всех ключей)
func (c *Cache) Clear() {
	c.mu.Lock()
	for _, e := range c.entries {
		e.gen++
		e.hasValue = false
		e.payload = nil
	}
	c.hits = 0
	c.misses = 0
	c.staleServed = 0
	c.mu.Unlock()
}
