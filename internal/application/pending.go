package application

import (
	"sync"

	"opboard/internal/domain/entities"
)

// PendingRemovals remembers reaction removals the engine itself issued so
// the resulting remove events are not mistaken for a user unsigning.
type PendingRemovals struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func NewPendingRemovals() *PendingRemovals {
	return &PendingRemovals{set: make(map[string]struct{})}
}

func (p *PendingRemovals) Add(r entities.Reaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set[r.Key()] = struct{}{}
}

// Consume removes r and reports whether it was pending.
func (p *PendingRemovals) Consume(r entities.Reaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.set[r.Key()]; !ok {
		return false
	}
	delete(p.set, r.Key())
	return true
}

// Discard drops r without reporting, after a failed removal.
func (p *PendingRemovals) Discard(r entities.Reaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.set, r.Key())
}

func (p *PendingRemovals) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.set)
}
