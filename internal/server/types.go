// Package server defines the wire envelope, the closed set of client intents,
// and the outbound event payloads exchanged over each WebSocket connection.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Inbound event names.
const (
	EventCreateRoom  = "create_room"
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventListRooms   = "list_rooms"
)

// Outbound event names.
const (
	EventRoomCreated = "room_created"
	EventMessage     = "message"
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventRoomInfo    = "room_info"
	EventRoomList    = "room_list"
	EventRoomError   = "room_error"
	EventRoomClosed  = "room_closed"
)

// SystemUsername is the sender of server-originated chat messages.
const SystemUsername = "System"

// ErrValidation marks an intent with a missing required field.
var ErrValidation = errors.New("validation failed")

// validationError carries the text shown to the sender and matches
// ErrValidation under errors.Is.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// errUnknownEvent marks an envelope whose event name is not an intent.
var errUnknownEvent = errors.New("unknown event")

// Envelope is the JSON frame carried by every WebSocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Intent is a decoded client request. The set of implementations is closed.
type Intent interface {
	intent()
}

// CreateRoom asks for a new room joined by its creator.
type CreateRoom struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// JoinRoom asks to join an existing room.
type JoinRoom struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// SendMessage posts text to a room.
type SendMessage struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// ListRooms asks for the current room list.
type ListRooms struct{}

func (CreateRoom) intent()  {}
func (JoinRoom) intent()    {}
func (SendMessage) intent() {}
func (ListRooms) intent()   {}

func (i CreateRoom) validate() error {
	if strings.TrimSpace(i.Username) == "" || strings.TrimSpace(i.Room) == "" {
		return &validationError{msg: "username and room are required"}
	}
	return nil
}

func (i JoinRoom) validate() error {
	if strings.TrimSpace(i.Username) == "" || strings.TrimSpace(i.Room) == "" {
		return &validationError{msg: "username and room are required"}
	}
	return nil
}

func (i SendMessage) validate() error {
	if i.Room == "" || i.Username == "" || i.Text == "" {
		return &validationError{msg: "room, username and text are required"}
	}
	return nil
}

// DecodeIntent parses a raw frame into one of the known intents.
func DecodeIntent(raw []byte) (Intent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case EventCreateRoom:
		return decodePayload[CreateRoom](env)
	case EventJoinRoom:
		return decodePayload[JoinRoom](env)
	case EventSendMessage:
		return decodePayload[SendMessage](env)
	case EventListRooms:
		return ListRooms{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
	}
}

func decodePayload[T Intent](env Envelope) (Intent, error) {
	var in T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &in); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
	}
	return in, nil
}

// RoomCreatedPayload is sent to the creator of a room.
type RoomCreatedPayload struct {
	Room string `json:"room"`
}

// MessagePayload is a chat message as delivered to clients.
type MessagePayload struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedPayload announces a new member to the whole room.
type UserJoinedPayload struct {
	Username string   `json:"username"`
	Room     string   `json:"room"`
	Users    []string `json:"users"`
}

// UserLeftPayload announces a departed member to the remaining members.
type UserLeftPayload struct {
	Username string   `json:"username"`
	Users    []string `json:"users"`
}

// RoomInfoPayload describes a room to a member that just joined it.
// Timestamps are Unix milliseconds.
type RoomInfoPayload struct {
	Room      string `json:"room"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	UserCount int    `json:"userCount"`
}

// RoomListEntry is one element of a room_list event.
type RoomListEntry struct {
	Name      string `json:"name"`
	UserCount int    `json:"userCount"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// RoomErrorPayload reports a failed intent to its sender.
type RoomErrorPayload struct {
	Message string `json:"message"`
}

// RoomClosedPayload tells members that their room was swept.
type RoomClosedPayload struct {
	Room string `json:"room"`
}

func newRoomInfo(r room.Room) RoomInfoPayload {
	return RoomInfoPayload{
		Room:      r.Name,
		CreatedAt: r.CreatedAt.UnixMilli(),
		ExpiresAt: r.ExpiresAt.UnixMilli(),
		UserCount: len(r.Members),
	}
}

func newRoomList(summaries []room.Summary) []RoomListEntry {
	list := make([]RoomListEntry, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, RoomListEntry{
			Name:      s.Name,
			UserCount: s.MemberCount,
			CreatedAt: s.CreatedAt.UnixMilli(),
			ExpiresAt: s.ExpiresAt.UnixMilli(),
		})
	}
	return list
}

// encodeEvent builds the wire frame for an outbound event.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
