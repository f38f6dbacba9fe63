package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/room"
)

// TestDecodeIntent covers every inbound event and the malformed frames the
// read pump can hand to the hub.
func TestDecodeIntent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Intent
		wantErr error
	}{
		{
			name: "create room",
			raw:  `{"event":"create_room","data":{"username":"alice","room":"R"}}`,
			want: CreateRoom{Username: "alice", Room: "R"},
		},
		{
			name: "join room",
			raw:  `{"event":"join_room","data":{"username":"bob","room":"R"}}`,
			want: JoinRoom{Username: "bob", Room: "R"},
		},
		{
			name: "send message",
			raw:  `{"event":"send_message","data":{"room":"R","username":"bob","text":"hi"}}`,
			want: SendMessage{Room: "R", Username: "bob", Text: "hi"},
		},
		{
			name: "list rooms without data",
			raw:  `{"event":"list_rooms"}`,
			want: ListRooms{},
		},
		{
			name: "join with null data",
			raw:  `{"event":"join_room","data":null}`,
			want: JoinRoom{},
		},
		{
			name:    "unknown event",
			raw:     `{"event":"dance","data":{}}`,
			wantErr: errUnknownEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeIntent([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeIntentMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"event":"create_room","data":"alice"}`,
		`{"event":"send_message","data":{"text":42}}`,
	} {
		_, err := DecodeIntent([]byte(raw))
		require.Error(t, err, raw)
		assert.NotErrorIs(t, err, errUnknownEvent, raw)
		assert.Equal(t, "Invalid message format.", decodeErrorMessage(err))
	}
}

func TestIntentValidation(t *testing.T) {
	tests := []struct {
		name   string
		intent interface{ validate() error }
		ok     bool
	}{
		{"create ok", CreateRoom{Username: "alice", Room: "R"}, true},
		{"create blank username", CreateRoom{Username: " ", Room: "R"}, false},
		{"join missing room", JoinRoom{Username: "alice"}, false},
		{"join ok", JoinRoom{Username: "alice", Room: "R"}, true},
		{"send ok", SendMessage{Room: "R", Username: "alice", Text: "hi"}, true},
		{"send missing text", SendMessage{Room: "R", Username: "alice"}, false},
		{"send missing room", SendMessage{Username: "alice", Text: "hi"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent(EventRoomError, RoomErrorPayload{Message: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"room_error","data":{"message":"nope"}}`, string(frame))
}

func TestRoomInfoUsesUnixMillis(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := room.Room{
		Name:      "R",
		CreatedAt: created,
		ExpiresAt: created.Add(room.DefaultLifetime),
		Members:   []room.Member{{ConnectionID: "c1", Username: "alice"}},
	}

	info := newRoomInfo(r)
	assert.Equal(t, RoomInfoPayload{
		Room:      "R",
		CreatedAt: created.UnixMilli(),
		ExpiresAt: created.Add(24 * time.Hour).UnixMilli(),
		UserCount: 1,
	}, info)

	raw, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, `{"room":"R","createdAt":1740830400000,"expiresAt":1740916800000,"userCount":1}`, string(raw))
}

func TestNewRoomListEmptyEncodesArray(t *testing.T) {
	raw, err := json.Marshal(newRoomList(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		event string
		want  string
	}{
		{"exists", room.ErrRoomAlreadyExists, EventCreateRoom, `Room "R" already exists. Please choose a different name.`},
		{"join missing", room.ErrRoomNotFound, EventJoinRoom, `Room "R" doesn't exist.`},
		{"send missing", room.ErrRoomNotFound, EventSendMessage, `Room "R" doesn't exist anymore.`},
		{"taken", room.ErrUsernameTaken, EventJoinRoom, `Username "alice" is already taken in this room.`},
		{"not member", room.ErrNotAMember, EventSendMessage, `You are not a member of room "R".`},
		{"other", assert.AnError, EventJoinRoom, "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage(tt.err, tt.event, "R", "alice"))
		})
	}
}
