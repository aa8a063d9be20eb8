package core

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// LockMode is the granularity of a hold placed on a resource across one or
// more domains. Exclusive locks conflict with every other mode; Shared
// locks conflict only with Exclusive; Intention locks (a holder's stated
// intent to later request Exclusive) conflict only with another holder's
// Exclusive or Intention lock, letting readers proceed while a writer
// queues up.
type LockMode uint8

const (
	LockExclusive LockMode = iota
	LockShared
	LockIntention
)

func (m LockMode) String() string {
	switch m {
	case LockExclusive:
		return "Exclusive"
	case LockShared:
		return "Shared"
	case LockIntention:
		return "Intention"
	default:
		return "Unknown"
	}
}

// conflicts reports whether a lock of mode m held by one party blocks a
// request for mode other by a different party.
func (m LockMode) conflicts(other LockMode) bool {
	if m == LockShared && other == LockShared {
		return false
	}
	if m == LockIntention && other == LockShared {
		return false
	}
	if m == LockShared && other == LockIntention {
		return false
	}
	return true
}

// lockHold is one granted lock: a mode, the holder that requested it, and
// the domain it was acquired in (empty for a purely local hold).
type lockHold struct {
	Mode      LockMode
	Holder    string
	Domain    string
	ExpiresAt *time.Time
}

func (h lockHold) expired(now time.Time) bool {
	return h.ExpiresAt != nil && now.After(*h.ExpiresAt)
}

// LockManager tracks, per resource, the set of currently granted lock
// holds, enforcing LockMode's conflict rules across every domain that
// holds a lock on that resource. A resource with no entry is unlocked.
type LockManager struct {
	mu    sync.Mutex
	holds map[EntityID][]lockHold

	log        *logrus.Entry
	contention prometheus.Counter
}

func NewLockManager() *LockManager {
	return &LockManager{
		holds: map[EntityID][]lockHold{},
		log:   logrus.WithField("component", "lock_manager"),
		contention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "causality_lock_contention_total",
			Help: "Count of lock acquisition attempts rejected by a conflicting hold.",
		}),
	}
}

// Collector exposes this manager's Prometheus metric so a caller can
// register it against its own registry.
func (m *LockManager) Collector() prometheus.Collector { return m.contention }

func (m *LockManager) pruneExpiredLocked(resourceID EntityID, now time.Time) {
	holds := m.holds[resourceID]
	live := holds[:0]
	for _, h := range holds {
		if !h.expired(now) {
			live = append(live, h)
		}
	}
	if len(live) == 0 {
		delete(m.holds, resourceID)
	} else {
		m.holds[resourceID] = live
	}
}

// CanAcquire reports whether mode could currently be granted to holder
// without conflicting with any existing hold placed by a different holder.
func (m *LockManager) CanAcquire(resourceID EntityID, mode LockMode, holder string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.pruneExpiredLocked(resourceID, now)
	for _, h := range m.holds[resourceID] {
		if h.Holder == holder {
			continue
		}
		if h.Mode.conflicts(mode) {
			return false
		}
	}
	return true
}

// LockAcquireStatus reports the outcome of an Acquire call.
type LockAcquireStatus uint8

const (
	// LockAcquired means a new hold was granted.
	LockAcquired LockAcquireStatus = iota
	// LockAlreadyHeld means the caller already held a live hold on the
	// resource; no duplicate hold was recorded. Upgrade/Downgrade change an
	// existing hold's mode instead of calling Acquire again.
	LockAlreadyHeld
	// LockUnavailable means a conflicting hold never cleared before ttl
	// elapsed (or ctx was cancelled first).
	LockUnavailable
)

func (s LockAcquireStatus) String() string {
	switch s {
	case LockAcquired:
		return "Acquired"
	case LockAlreadyHeld:
		return "AlreadyHeld"
	case LockUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// Acquire grants holder a lock of mode over resourceID in domain. If a
// conflicting hold from a different holder is in the way, Acquire retries on
// an exponential backoff until the conflict clears or ttl elapses, at which
// point it returns LockUnavailable; ttl of zero performs a single
// non-blocking attempt. Once granted, the hold itself also expires after
// ttl (zero meaning it never expires on its own) — the same duration bounds
// both how long a caller is willing to wait and how long the resulting hold
// lives.
func (m *LockManager) Acquire(ctx context.Context, resourceID EntityID, mode LockMode, holder, domain string, ttl time.Duration) (LockAcquireStatus, error) {
	if holder == "" {
		holder = uuid.NewString()
	}

	deadline := time.Now().Add(ttl)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 0

	for {
		status, granted := m.tryAcquireLocked(resourceID, mode, holder, domain, ttl)
		if granted {
			return status, nil
		}
		if ttl <= 0 {
			return LockUnavailable, NewErrorFor(ErrLock, resourceID, "cannot acquire %s lock: conflicts with an existing hold", mode)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			m.log.WithFields(logrus.Fields{"resource": resourceID.String(), "mode": mode, "holder": holder}).
				Debug("lock acquisition timed out waiting for availability")
			return LockUnavailable, NewErrorFor(ErrLock, resourceID, "cannot acquire %s lock: timed out waiting for availability", mode)
		}
		wait := policy.NextBackOff()
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return LockUnavailable, ctx.Err()
		}
	}
}

// tryAcquireLocked makes one attempt at granting the lock, returning
// (status, true) when the caller should stop retrying (acquired, already
// held, or a permanent failure isn't possible here) and (LockUnavailable,
// false) when the conflict may still clear before the deadline.
func (m *LockManager) tryAcquireLocked(resourceID EntityID, mode LockMode, holder, domain string, ttl time.Duration) (LockAcquireStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.pruneExpiredLocked(resourceID, now)

	for _, h := range m.holds[resourceID] {
		if h.Holder == holder {
			return LockAlreadyHeld, true
		}
	}
	for _, h := range m.holds[resourceID] {
		if h.Mode.conflicts(mode) {
			m.contention.Inc()
			m.log.WithFields(logrus.Fields{"resource": resourceID.String(), "mode": mode, "holder": holder}).
				Debug("lock acquisition blocked by conflicting hold")
			return LockUnavailable, false
		}
	}

	hold := lockHold{Mode: mode, Holder: holder, Domain: domain}
	if ttl > 0 {
		expires := now.Add(ttl)
		hold.ExpiresAt = &expires
	}
	m.holds[resourceID] = append(m.holds[resourceID], hold)
	m.log.WithFields(logrus.Fields{"resource": resourceID.String(), "mode": mode, "holder": holder, "domain": domain}).
		Info("lock acquired")
	return LockAcquired, true
}

// Release drops holder's hold on resourceID, if any. Releasing a hold that
// does not exist is a no-op, matching the idempotent release semantics a
// cleanup path relies on.
func (m *LockManager) Release(resourceID EntityID, holder string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	holds := m.holds[resourceID]
	out := holds[:0]
	for _, h := range holds {
		if h.Holder != holder {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		delete(m.holds, resourceID)
	} else {
		m.holds[resourceID] = out
	}
	m.log.WithFields(logrus.Fields{"resource": resourceID.String(), "holder": holder}).Debug("lock released")
}

// IsLocked reports whether resourceID currently has any live hold at all.
func (m *LockManager) IsLocked(resourceID EntityID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneExpiredLocked(resourceID, time.Now())
	return len(m.holds[resourceID]) > 0
}

// Upgrade attempts to replace holder's existing hold on resourceID with a
// stronger mode (Intention -> Shared -> Exclusive), failing if another
// holder's conflicting lock would block the stronger mode.
func (m *LockManager) Upgrade(resourceID EntityID, holder string, to LockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.pruneExpiredLocked(resourceID, now)
	holds := m.holds[resourceID]
	idx := -1
	for i, h := range holds {
		if h.Holder == holder {
			idx = i
			break
		}
	}
	if idx == -1 {
		return NewErrorFor(ErrLock, resourceID, "cannot upgrade: holder %s has no existing lock", holder)
	}
	for i, h := range holds {
		if i == idx || h.Holder == holder {
			continue
		}
		if h.Mode.conflicts(to) {
			return NewErrorFor(ErrLock, resourceID, "cannot upgrade to %s: conflicts with existing %s hold", to, h.Mode)
		}
	}
	holds[idx].Mode = to
	m.log.WithFields(logrus.Fields{"resource": resourceID.String(), "holder": holder, "to": to}).Info("lock upgraded")
	return nil
}

// Downgrade replaces holder's existing hold with a weaker mode. Unlike
// Upgrade this can never conflict with another holder's lock, since a
// weaker mode is implied to be compatible with anything the stronger one
// already tolerated.
func (m *LockManager) Downgrade(resourceID EntityID, holder string, to LockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	holds := m.holds[resourceID]
	for i, h := range holds {
		if h.Holder == holder {
			holds[i].Mode = to
			m.log.WithFields(logrus.Fields{"resource": resourceID.String(), "holder": holder, "to": to}).Debug("lock downgraded")
			return nil
		}
	}
	return NewErrorFor(ErrLock, resourceID, "cannot downgrade: holder %s has no existing lock", holder)
}

// HoldersOf returns the holder tokens currently holding a lock on
// resourceID, for diagnostics.
func (m *LockManager) HoldersOf(resourceID EntityID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneExpiredLocked(resourceID, time.Now())
	out := make([]string, 0, len(m.holds[resourceID]))
	for _, h := range m.holds[resourceID] {
		out = append(out, h.Holder)
	}
	return out
}
