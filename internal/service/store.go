package service

import (
	"sync"

	"stove_control/internal/models"
)

// Broadcaster is the fan-out the store publishes to.
type Broadcaster interface {
	Publish(snap models.SystemSnapshot)
	Subscribe(initial *models.SystemSnapshot) (<-chan models.SystemSnapshot, func())
}

// Change describes one store update.
type Change struct {
	Before    models.SystemSnapshot
	After     models.SystemSnapshot
	Published bool
}

// ModeChanged reports whether the update moved the system to another mode.
func (c Change) ModeChanged() bool {
	return c.Before.SystemState != c.After.SystemState
}

// SnapshotStore owns the process-wide SystemSnapshot. Writes are applied
// under one lock and published only when the visible snapshot differs
// from the last one published. HardwareConnected is never stored: it is
// read from the gateway whenever a view is built.
type SnapshotStore struct {
	mu        sync.RWMutex
	snap      models.SystemSnapshot
	published models.SystemSnapshot
	connected func() bool
	hub       Broadcaster
}

// NewSnapshotStore creates the store with process-start defaults.
func NewSnapshotStore(hub Broadcaster, connected func() bool) *SnapshotStore {
	if connected == nil {
		connected = func() bool { return false }
	}
	s := &SnapshotStore{
		snap:      models.DefaultSnapshot(),
		connected: connected,
		hub:       hub,
	}
	s.published = s.view()
	return s
}

// Snapshot returns a consistent point-in-time copy.
func (s *SnapshotStore) Snapshot() models.SystemSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view()
}

// Update applies fn and broadcasts the result if anything visible changed.
// fn must not block.
func (s *SnapshotStore) Update(fn func(*models.SystemSnapshot)) Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.view()
	fn(&s.snap)
	return Change{Before: before, After: s.view(), Published: s.publishLocked()}
}

// UpdateSilently applies fn without broadcasting. The change goes out with
// the next published update.
func (s *SnapshotStore) UpdateSilently(fn func(*models.SystemSnapshot)) Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.view()
	fn(&s.snap)
	return Change{Before: before, After: s.view()}
}

// Refresh publishes the current view if it differs from the last broadcast,
// e.g. after the gateway's connectivity flipped.
func (s *SnapshotStore) Refresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked()
}

// Subscribe registers an observer that first receives the current snapshot.
func (s *SnapshotStore) Subscribe() (<-chan models.SystemSnapshot, func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view()
	return s.hub.Subscribe(&v)
}

func (s *SnapshotStore) view() models.SystemSnapshot {
	v := s.snap
	v.HardwareConnected = s.connected()
	return v
}

func (s *SnapshotStore) publishLocked() bool {
	v := s.view()
	if v == s.published {
		return false
	}
	s.published = v
	if s.hub != nil {
		s.hub.Publish(v)
	}
	return true
}
