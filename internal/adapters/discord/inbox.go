package discord

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"opboard/internal/domain"
)

// Inbox hands direct messages to the dialogue waiting on their author.
// A user has at most one waiter; messages nobody waits for are dropped.
type Inbox struct {
	clock clockwork.Clock

	mu      sync.Mutex
	waiters map[string]chan string
}

func NewInbox(c clockwork.Clock) *Inbox {
	return &Inbox{
		clock:   c,
		waiters: make(map[string]chan string),
	}
}

// Wait blocks until userID sends a direct message, timeout elapses or ctx
// ends. A newer Wait for the same user replaces the older one, which then
// only ends on its own timeout or context.
func (in *Inbox) Wait(ctx context.Context, userID string, timeout time.Duration) (string, error) {
	ch := make(chan string, 1)
	in.mu.Lock()
	in.waiters[userID] = ch
	in.mu.Unlock()

	defer func() {
		in.mu.Lock()
		if in.waiters[userID] == ch {
			delete(in.waiters, userID)
		}
		in.mu.Unlock()
	}()

	select {
	case content := <-ch:
		return content, nil
	case <-in.clock.After(timeout):
		return "", domain.ErrDialogueTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Deliver passes content to the user's waiter and reports whether one was
// waiting.
func (in *Inbox) Deliver(userID, content string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	ch, ok := in.waiters[userID]
	if !ok {
		return false
	}
	select {
	case ch <- content:
		// One reply per wait.
		delete(in.waiters, userID)
		return true
	default:
		return false
	}
}

// Waiting returns the number of users with a pending Wait.
func (in *Inbox) Waiting() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.waiters)
}
