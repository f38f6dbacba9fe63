package room

import "errors"

var (
	// ErrRoomAlreadyExists is returned when creating a room whose name is taken.
	ErrRoomAlreadyExists = errors.New("room already exists")
	// ErrRoomNotFound is returned when the named room is not in the registry.
	ErrRoomNotFound = errors.New("room not found")
	// ErrUsernameTaken is returned when joining under a username or connection
	// already present in the room.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrNotAMember is returned when sending as someone who is not in the room.
	ErrNotAMember = errors.New("not a member of room")
)
