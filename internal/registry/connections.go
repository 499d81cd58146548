package registry

import (
	"sync"
	"time"

	"github.com/voxmeet/voxmeet/internal/domain"
)

// ConnectionRegistry tracks per-identity disconnect times for the
// reconnect-grace decision. It is process-local: after a restart the room
// grouping is rebuilt from client reconnects and grace history starts fresh.
type ConnectionRegistry struct {
	mu             sync.Mutex
	lastDisconnect map[string]time.Time // userID -> disconnect time
	grace          time.Duration
}

func NewConnectionRegistry(grace time.Duration) *ConnectionRegistry {
	return &ConnectionRegistry{
		lastDisconnect: make(map[string]time.Time),
		grace:          grace,
	}
}

// MarkDisconnected records the identity's most recent disconnect time.
func (r *ConnectionRegistry) MarkDisconnected(id domain.Identity, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastDisconnect[id.UserID] = at
	r.sweepLocked(at)
}

// WithinGrace reports whether a join at the given time counts as a reconnect,
// i.e. the identity disconnected less than the grace window ago.
func (r *ConnectionRegistry) WithinGrace(id domain.Identity, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.lastDisconnect[id.UserID]
	if !ok {
		return false
	}
	if now.Sub(at) >= r.grace {
		delete(r.lastDisconnect, id.UserID)
		return false
	}
	return true
}

// sweepLocked drops records too old to ever satisfy the grace check again.
// Called with the lock held.
func (r *ConnectionRegistry) sweepLocked(now time.Time) {
	if len(r.lastDisconnect) < 1024 {
		return
	}
	cutoff := now.Add(-r.grace)
	for userID, at := range r.lastDisconnect {
		if at.Before(cutoff) {
			delete(r.lastDisconnect, userID)
		}
	}
}
