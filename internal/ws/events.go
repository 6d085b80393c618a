package ws

import "encoding/json"

// Inbound event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventSendMessage  = "send_message"
	EventTyping       = "typing"
	EventMarkRead     = "mark_read"
)

// Outbound event names.
const (
	EventAuthenticated = "authenticated"
	EventJoinedRoom    = "joined_room"
	EventLeftRoom      = "left_room"
	EventUserJoined    = "user_joined"
	EventUserLeft      = "user_left"
	EventNewMessage    = "new_message"
	EventNotification  = "notification"
	EventUserTyping    = "user_typing"
	EventMessagesRead  = "messages_read"
	EventUserStatus    = "user_status"
	EventError         = "error"

	// Pushed from the REST layer when the friend graph changes.
	EventFriendRequest  = "friend_request"
	EventFriendAccepted = "friend_request_accepted"
)

// envelope is the frame format in both directions: an event name plus an
// event-specific data object.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}

// Inbound payloads.

type authenticatePayload struct {
	Token string `json:"token"`
}

type roomPayload struct {
	RoomID string `json:"room_id"`
}

type sendMessagePayload struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
	Kind    string `json:"message_type"`
}

type typingPayload struct {
	RoomID   string `json:"room_id"`
	IsTyping *bool  `json:"is_typing"`
}

// Outbound payloads.

type authenticatedPayload struct {
	UserID  string   `json:"user_id"`
	RoomIDs []string `json:"room_ids"`
}

type roomUserPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type notificationPayload struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Message any    `json:"message"`
}

type userTypingPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

type messagesReadPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type userStatusPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

type errorPayload struct {
	Message string `json:"message"`
}
