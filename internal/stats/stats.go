// Package stats accumulates relayed byte counts per destination IP.
//
// Counts are held in an expiring in-memory cache: a destination that sees no
// traffic for a week is forgotten, and a daily janitor sweep reclaims the
// entries. A SIGUSR1 handler in main dumps the busiest destinations to the
// log on demand.
package stats

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	entryExpiry   = 7 * 24 * time.Hour
	sweepInterval = 24 * time.Hour

	// How many destinations a dump reports.
	topCount = 80
)

// Tracker is safe for concurrent use by many sessions.
type Tracker struct {
	mu sync.Mutex
	c  *cache.Cache
}

func NewTracker() *Tracker {
	return &Tracker{c: cache.New(entryExpiry, sweepInterval)}
}

// Add records bytes relayed to or from ip. The entry's expiry is refreshed
// on every update, so only destinations idle for the full window age out.
func (t *Tracker) Add(ip net.IP, bytes int64) {
	if ip == nil || bytes <= 0 {
		return
	}
	key := ip.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.c.Get(key); ok {
		bytes += v.(int64)
	}
	t.c.Set(key, bytes, cache.DefaultExpiration)
}

// Entry is one destination's accumulated byte count.
type Entry struct {
	IP    string
	Bytes int64
}

// Top returns up to n destinations ordered by byte count, busiest first.
func (t *Tracker) Top(n int) []Entry {
	items := t.c.Items()

	entries := make([]Entry, 0, len(items))
	for ip, item := range items {
		entries = append(entries, Entry{IP: ip, Bytes: item.Object.(int64)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Bytes > entries[j].Bytes
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// LogTop writes the busiest destinations to log, one line each.
func (t *Tracker) LogTop(log *zap.Logger) {
	log.Info("top destinations by byte count")
	for _, e := range t.Top(topCount) {
		log.Info("destination traffic", zap.String("ip", e.IP), zap.Int64("bytes", e.Bytes))
	}
}
