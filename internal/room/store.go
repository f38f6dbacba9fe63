package room

import (
	"fmt"
	"sync"
	"time"
)

// Store owns the room registry. A single mutex guards the whole registry so
// every operation, including a sweep, runs to completion before the next one
// starts. Identifiers are assumed to be validated by the caller.
type Store struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	order    []string
	lifetime time.Duration
}

// NewStore creates an empty registry whose rooms expire lifetime after
// creation. A non-positive lifetime selects DefaultLifetime.
func NewStore(lifetime time.Duration) *Store {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Store{
		rooms:    make(map[string]*Room),
		lifetime: lifetime,
	}
}

// Lifetime reports how long new rooms live.
func (s *Store) Lifetime() time.Duration {
	return s.lifetime
}

// Create inserts a room named name. Founders, if any, become its first
// members within the same critical section, so a concurrent sweep never sees
// the new room empty.
func (s *Store) Create(name string, now time.Time, founders ...Member) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[name]; exists {
		return Room{}, fmt.Errorf("create %q: %w", name, ErrRoomAlreadyExists)
	}

	r := &Room{
		Name:      name,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
		Members:   append([]Member(nil), founders...),
	}
	s.rooms[name] = r
	s.order = append(s.order, name)
	return r.clone(), nil
}

// Get returns a snapshot of the named room.
func (s *Store) Get(name string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[name]
	if !ok {
		return Room{}, fmt.Errorf("get %q: %w", name, ErrRoomNotFound)
	}
	return r.clone(), nil
}

// List returns a summary of every room in creation order.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]Summary, 0, len(s.order))
	for _, name := range s.order {
		summaries = append(summaries, s.rooms[name].summary())
	}
	return summaries
}

// Len reports the number of rooms in the registry.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Remove deletes the named room. Removing an absent room is a no-op.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

func (s *Store) removeLocked(name string) {
	if _, ok := s.rooms[name]; !ok {
		return
	}
	delete(s.rooms, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AddMember appends m to the named room and returns the updated snapshot.
// A room past its expiry stays joinable until a sweep removes it. Usernames
// are compared case-sensitively.
func (s *Store) AddMember(name string, m Member) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[name]
	if !ok {
		return Room{}, fmt.Errorf("join %q: %w", name, ErrRoomNotFound)
	}
	if r.hasUsername(m.Username) {
		return Room{}, fmt.Errorf("join %q as %q: %w", name, m.Username, ErrUsernameTaken)
	}
	if r.indexOfConnection(m.ConnectionID) >= 0 {
		return Room{}, fmt.Errorf("join %q as %q: %w", name, m.Username, ErrUsernameTaken)
	}

	r.Members = append(r.Members, m)
	return r.clone(), nil
}

// RemoveMember removes the member bound to connectionID from the named room.
// The returned room is the post-removal snapshot; ok is false when either the
// room or the member is absent.
func (s *Store) RemoveMember(name, connectionID string) (removed Member, after Room, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.rooms[name]
	if !exists {
		return Member{}, Room{}, false
	}
	i := r.indexOfConnection(connectionID)
	if i < 0 {
		return Member{}, Room{}, false
	}

	removed = r.Members[i]
	r.Members = append(r.Members[:i], r.Members[i+1:]...)
	return removed, r.clone(), true
}

// SweepExpired removes every room that has expired at now or has no members,
// returning snapshots of the removed rooms in creation order.
func (s *Store) SweepExpired(now time.Time) []Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Room
	for _, name := range append([]string(nil), s.order...) {
		r := s.rooms[name]
		if r.expired(now) || len(r.Members) == 0 {
			removed = append(removed, r.clone())
			s.removeLocked(name)
		}
	}
	return removed
}
