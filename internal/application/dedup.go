package application

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDedupTTL absorbs the gateway's at-least-once redelivery.
const DefaultDedupTTL = 5 * time.Second

// dedupPruneThreshold bounds the table between prunes.
const dedupPruneThreshold = 1024

// Deduplicator drops repeated deliveries of the same gateway event within
// a short window. State is process-local and lost on restart.
type Deduplicator struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDeduplicator(c clockwork.Clock, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduplicator{
		clock: c,
		ttl:   ttl,
		seen:  make(map[string]time.Time),
	}
}

// IsDuplicate reports whether key was seen within the TTL. A false result
// records key as seen now.
func (d *Deduplicator) IsDuplicate(key string) bool {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	if len(d.seen) > dedupPruneThreshold {
		d.pruneLocked(now)
	}
	return false
}

// Len returns the number of keys currently tracked.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) pruneLocked(now time.Time) {
	for key, last := range d.seen {
		if now.Sub(last) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
