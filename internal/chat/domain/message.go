package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageCollection mongo collection of messages
const MessageCollection = "chat_messages"

// MessageType content kind
type MessageType string

const (
	// MessageText plain text
	MessageText MessageType = "text"
	// MessageImage image attachment
	MessageImage MessageType = "image"
	// MessageVoice voice note
	MessageVoice MessageType = "voice"
	// MessageFile generic file
	MessageFile MessageType = "file"
)

// MessageStatus delivery status
type MessageStatus string

const (
	// StatusSent persisted
	StatusSent MessageStatus = "sent"
	// StatusDelivered reached a recipient device
	StatusDelivered MessageStatus = "delivered"
	// StatusSeen opened by a recipient
	StatusSeen MessageStatus = "seen"
)

// Valid check status value
func (s MessageStatus) Valid() bool {
	return s == StatusSent || s == StatusDelivered || s == StatusSeen
}

// Attachment uploaded asset reference
type Attachment struct {
	URL  string                 `bson:"url" json:"url" validate:"required"`
	Key  string                 `bson:"key,omitempty" json:"key,omitempty"`
	Kind string                 `bson:"kind,omitempty" json:"kind,omitempty"`
	Meta map[string]interface{} `bson:"meta,omitempty" json:"meta,omitempty"`
}

// ChatMessage 表示一則聊天訊息
type ChatMessage struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RoomID      primitive.ObjectID  `bson:"room_id" json:"room_id"`
	SenderID    string              `bson:"sender_id" json:"sender_id"`
	Type        MessageType         `bson:"type" json:"type"`
	Text        string              `bson:"text,omitempty" json:"text,omitempty"`
	Attachments []Attachment        `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReplyTo     *primitive.ObjectID `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	ReadBy      []string            `bson:"read_by" json:"read_by"`
	Status      MessageStatus       `bson:"status" json:"status"`
	SeenAt      *time.Time          `bson:"seen_at,omitempty" json:"seen_at,omitempty"`
	ClientID    string              `bson:"client_id,omitempty" json:"client_id,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}

// SendMessageRequest create message body (REST, socket, sync push)
type SendMessageRequest struct {
	RoomID      string       `json:"room_id" validate:"required,objectid"`
	Type        MessageType  `json:"type" validate:"omitempty,oneof=text image voice file"`
	Text        string       `json:"text" validate:"max=4000"`
	Attachments []Attachment `json:"attachments" validate:"omitempty,dive"`
	ReplyTo     string       `json:"reply_to" validate:"omitempty,objectid"`
	ClientID    string       `json:"client_id" validate:"max=128"`
}

// SendResult CreateMessage output
type SendResult struct {
	Message        *ChatMessage
	ParticipantIDs []string
	RoomName       string
	// Duplicate client_id 已存在，沒有新寫入
	Duplicate bool
}

// UpdateStatusRequest status patch body
type UpdateStatusRequest struct {
	Status MessageStatus `json:"status" validate:"required,oneof=delivered seen"`
}

// ReplySummary quoted message preview
type ReplySummary struct {
	ID     string          `json:"id"`
	Text   string          `json:"text,omitempty"`
	Type   MessageType     `json:"type"`
	Sender *ProfileSummary `json:"sender,omitempty"`
}

// MessageView enriched message for clients
type MessageView struct {
	ID             string          `json:"id"`
	RoomID         string          `json:"room_id"`
	SenderID       string          `json:"sender_id"`
	Sender         *ProfileSummary `json:"sender,omitempty"`
	Type           MessageType     `json:"type"`
	Text           string          `json:"text,omitempty"`
	Attachments    []Attachment    `json:"attachments,omitempty"`
	ReplyTo        string          `json:"reply_to,omitempty"`
	ReplyToMessage *ReplySummary   `json:"reply_to_message,omitempty"`
	ReadBy         []string        `json:"read_by"`
	Status         MessageStatus   `json:"status"`
	SeenAt         *time.Time      `json:"seen_at,omitempty"`
	ClientID       string          `json:"client_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewMessageView map message, profiles may be nil
func NewMessageView(m *ChatMessage, profiles map[string]ProfileSummary) *MessageView {
	v := &MessageView{
		ID:          m.ID.Hex(),
		RoomID:      m.RoomID.Hex(),
		SenderID:    m.SenderID,
		Type:        m.Type,
		Text:        m.Text,
		Attachments: m.Attachments,
		ReadBy:      m.ReadBy,
		Status:      m.Status,
		SeenAt:      m.SeenAt,
		ClientID:    m.ClientID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ReplyTo != nil {
		v.ReplyTo = m.ReplyTo.Hex()
	}
	if p, ok := profiles[m.SenderID]; ok {
		v.Sender = &p
	}
	return v
}
