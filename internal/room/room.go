// Package room holds the in-memory room registry, the membership rules that
// govern who is in which room, and the periodic sweep that evicts expired or
// empty rooms. It has no knowledge of the transport.
package room

import "time"

// DefaultLifetime is how long a room lives after creation.
const DefaultLifetime = 24 * time.Hour

// Member is a single (connection, username) pair inside a room.
type Member struct {
	ConnectionID string
	Username     string
}

// Room is a named, time-bounded chat channel. Members are kept in join order.
type Room struct {
	Name      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Members   []Member
}

// Usernames returns the member usernames in join order.
func (r *Room) Usernames() []string {
	names := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		names = append(names, m.Username)
	}
	return names
}

// ConnectionIDs returns the member connection ids in join order.
func (r *Room) ConnectionIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.ConnectionID)
	}
	return ids
}

func (r *Room) hasUsername(username string) bool {
	for _, m := range r.Members {
		if m.Username == username {
			return true
		}
	}
	return false
}

func (r *Room) indexOfConnection(connectionID string) int {
	for i, m := range r.Members {
		if m.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

func (r *Room) expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

func (r *Room) clone() Room {
	c := *r
	c.Members = append([]Member(nil), r.Members...)
	return c
}

// Summary is the listing view of a room.
type Summary struct {
	Name        string
	MemberCount int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (r *Room) summary() Summary {
	return Summary{
		Name:        r.Name,
		MemberCount: len(r.Members),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}
