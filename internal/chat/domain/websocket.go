package domain

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action websocket request action
type Action string

const (
	// JoinRoom websocket action join_room
	JoinRoom Action = "join_room"
	// LeaveRoom websocket action leave_room
	LeaveRoom Action = "leave_room"
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// Typing websocket action typing
	Typing Action = "typing"
	// MessageDelivered websocket action message_delivered
	MessageDelivered Action = "message_delivered"
	// MessageSeen websocket action message_seen
	MessageSeen Action = "message_seen"
	// GetOnlineUsers websocket action get_online_users
	GetOnlineUsers Action = "get_online_users"
	// GetUnreadCount websocket action get_unread_count
	GetUnreadCount Action = "get_unread_count"
)

// Known check action is one of the client actions
func (a Action) Known() bool {
	switch a {
	case JoinRoom, LeaveRoom, SendMessage, Typing, MessageDelivered, MessageSeen, GetOnlineUsers, GetUnreadCount:
		return true
	}
	return false
}

// Event server pushed event name
type Event string

const (
	// EventMessage new message in room
	EventMessage Event = "message"
	// EventUserTyping typing indicator
	EventUserTyping Event = "user_typing"
	// EventMessageStatus delivered / seen update
	EventMessageStatus Event = "message_status"
	// EventUserOnline user connected
	EventUserOnline Event = "user_online"
	// EventUserOffline user last connection closed
	EventUserOffline Event = "user_offline"
	// EventUnreadCount unread conversation total of the user
	EventUnreadCount Event = "unread_count"
	// EventError protocol level error
	EventError Event = "error"
)

// Bus channels
const (
	ChannelMessages = "chat:messages"
	ChannelTyping   = "chat:typing"
	ChannelStatus   = "chat:status"
	ChannelUser     = "chat:user"
	ChannelPresence = "chat:presence"
)

// BusChannels every channel a gateway instance subscribes
var BusChannels = []string{ChannelMessages, ChannelTyping, ChannelStatus, ChannelUser, ChannelPresence}

// BroadcastAll target every local connection
const BroadcastAll = "*"

// UserGroup personal group of user
func UserGroup(userID string) string {
	return "user_" + userID
}

// WSRequest websocket Request
type WSRequest struct {
	Action      string       `json:"action"`
	RequestID   string       `json:"request_id,omitempty"`
	RoomID      string       `json:"room_id,omitempty"`
	Type        MessageType  `json:"type,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	TempID      string       `json:"temp_id,omitempty"`
	MessageID   string       `json:"message_id,omitempty"`
	IsTyping    bool         `json:"is_typing,omitempty"`
	IsRecording bool         `json:"is_recording,omitempty"`
}

// Normalize id 轉成小寫 hex，hub group 與 fan-out 的 room.ID.Hex() 一致
func (r *WSRequest) Normalize() {
	r.RoomID = canonicalID(r.RoomID)
	r.MessageID = canonicalID(r.MessageID)
	r.ReplyTo = canonicalID(r.ReplyTo)
}

func canonicalID(id string) string {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return id
	}
	return oid.Hex()
}

// WSError error detail
type WSError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WSResponse websocket Response (ack and pushed event share the shape)
type WSResponse struct {
	Action    string                 `json:"action"`
	RequestID string                 `json:"request_id,omitempty"`
	Success   bool                   `json:"success"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Error     *WSError               `json:"error,omitempty"`
}

// NewEvent success event with payload
func NewEvent(e Event, payload map[string]interface{}) WSResponse {
	return WSResponse{Action: string(e), Success: true, Payload: payload}
}

// BusEnvelope cross instance relay unit
type BusEnvelope struct {
	// Origin instance id of the publisher, receivers skip their own
	Origin string `json:"origin"`
	// Target group (room id / user_<id> / BroadcastAll)
	Target string `json:"target"`
	// Exclude connection id not to deliver to
	Exclude string          `json:"exclude,omitempty"`
	Event   json.RawMessage `json:"event"`
}
