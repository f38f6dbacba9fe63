package room

import (
	"fmt"
	"sync"
	"time"
)

// JoinResult describes a room right after a member was added.
type JoinResult struct {
	Room      Room
	Usernames []string
}

// LeaveEvent describes a member that left a room and who is still there.
type LeaveEvent struct {
	Room                 string
	Username             string
	RemainingUsernames   []string
	RemainingConnections []string
}

// ChatMessage is a transient message built at send time. It is broadcast once
// and never stored.
type ChatMessage struct {
	Username  string
	Text      string
	Timestamp time.Time
}

// Coordinator applies membership changes to a Store and keeps an index from
// connection id to the rooms that connection belongs to, so a disconnect
// touches only those rooms.
type Coordinator struct {
	store *Store

	mu       sync.Mutex
	bindings map[string][]string
}

// NewCoordinator returns a Coordinator operating on store.
func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{
		store:    store,
		bindings: make(map[string][]string),
	}
}

// Store returns the underlying room store.
func (c *Coordinator) Store() *Store {
	return c.store
}

// Open creates roomName with the connection as its first member.
func (c *Coordinator) Open(roomName, connectionID, username string, now time.Time) (JoinResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.store.Create(roomName, now, Member{ConnectionID: connectionID, Username: username})
	if err != nil {
		return JoinResult{}, err
	}
	c.bind(connectionID, roomName)
	return JoinResult{Room: r, Usernames: r.Usernames()}, nil
}

// Join appends the connection to roomName under username.
func (c *Coordinator) Join(roomName, connectionID, username string) (JoinResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.store.AddMember(roomName, Member{ConnectionID: connectionID, Username: username})
	if err != nil {
		return JoinResult{}, err
	}
	c.bind(connectionID, roomName)
	return JoinResult{Room: r, Usernames: r.Usernames()}, nil
}

// Leave removes the connection from a single room. ok is false when the
// connection was not a member of it.
func (c *Coordinator) Leave(roomName, connectionID string) (LeaveEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unbind(connectionID, roomName)
	return c.leaveLocked(roomName, connectionID)
}

// LeaveByConnection removes the connection from every room it belongs to and
// reports one event per room. It returns nil when the connection is not a
// member anywhere.
func (c *Coordinator) LeaveByConnection(connectionID string) []LeaveEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := c.bindings[connectionID]
	delete(c.bindings, connectionID)

	var events []LeaveEvent
	for _, name := range rooms {
		if ev, ok := c.leaveLocked(name, connectionID); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (c *Coordinator) leaveLocked(roomName, connectionID string) (LeaveEvent, bool) {
	m, after, ok := c.store.RemoveMember(roomName, connectionID)
	if !ok {
		return LeaveEvent{}, false
	}
	return LeaveEvent{
		Room:                 roomName,
		Username:             m.Username,
		RemainingUsernames:   after.Usernames(),
		RemainingConnections: after.ConnectionIDs(),
	}, true
}

// Send builds a message from username for roomName. The sender must be a
// current member of the room.
func (c *Coordinator) Send(roomName, username, text string, now time.Time) (ChatMessage, error) {
	r, err := c.store.Get(roomName)
	if err != nil {
		return ChatMessage{}, err
	}
	if !r.hasUsername(username) {
		return ChatMessage{}, fmt.Errorf("send to %q as %q: %w", roomName, username, ErrNotAMember)
	}
	return ChatMessage{Username: username, Text: text, Timestamp: now}, nil
}

// Recipients returns the connection ids currently in roomName.
func (c *Coordinator) Recipients(roomName string) ([]string, error) {
	r, err := c.store.Get(roomName)
	if err != nil {
		return nil, err
	}
	return r.ConnectionIDs(), nil
}

// Forget drops index entries pointing at a room that no longer exists.
func (c *Coordinator) Forget(roomName string, connectionIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range connectionIDs {
		c.unbind(id, roomName)
	}
}

// Rooms returns the rooms the connection is bound to.
func (c *Coordinator) Rooms(connectionID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bindings[connectionID]...)
}

func (c *Coordinator) bind(connectionID, roomName string) {
	c.bindings[connectionID] = append(c.bindings[connectionID], roomName)
}

func (c *Coordinator) unbind(connectionID, roomName string) {
	rooms := c.bindings[connectionID]
	for i, name := range rooms {
		if name == roomName {
			rooms = append(rooms[:i], rooms[i+1:]...)
			break
		}
	}
	if len(rooms) == 0 {
		delete(c.bindings, connectionID)
		return
	}
	c.bindings[connectionID] = rooms
}
