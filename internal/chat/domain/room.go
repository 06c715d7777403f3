package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"task_chat_service/pkg"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// RoomCollection mongo collection of rooms
	RoomCollection = "chat_rooms"
	// DefaultRoomName used when the context has no title
	DefaultRoomName = "New Chat Room"
	// RoomNameMaxLen room name is the context title cut to this many runes
	RoomNameMaxLen = 20
)

// ChatRoom one conversation bound to a task and a fixed participant set
type ChatRoom struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ContextID       string             `bson:"context_id" json:"context_id"`
	Participants    []string           `bson:"participants" json:"participants"`
	ParticipantsKey string             `bson:"participants_key" json:"participants_key"`
	Name            string             `bson:"name" json:"name"`
	Picture         string             `bson:"picture,omitempty" json:"picture,omitempty"`
	LastMessageAt   *time.Time         `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	UnreadCounts    map[string]int     `bson:"unread_counts" json:"-"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// ParticipantsKeySep separator of participants_key, never allowed inside an id
const ParticipantsKeySep = "_"

// ParticipantsKeyOf 去重排序後以 "_" 串接
func ParticipantsKeyOf(ids ...string) ([]string, string) {
	sorted := pkg.UniqueSorted(ids...)
	return sorted, strings.Join(sorted, ParticipantsKeySep)
}

// RoomName cut title to RoomNameMaxLen runes
func RoomName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultRoomName
	}
	if utf8.RuneCountInString(title) <= RoomNameMaxLen {
		return title
	}
	return string([]rune(title)[:RoomNameMaxLen])
}

// IsParticipant check user in room
func (r *ChatRoom) IsParticipant(userID string) bool {
	return pkg.Contains(r.Participants, userID)
}

// UnreadFor unread counter of user, absent = 0
func (r *ChatRoom) UnreadFor(userID string) int {
	if r.UnreadCounts == nil {
		return 0
	}
	return r.UnreadCounts[userID]
}

// Others participants except user
func (r *ChatRoom) Others(userID string) []string {
	return pkg.Without(r.Participants, userID)
}

// RoomWithLastMessage ListForUser aggregate row
type RoomWithLastMessage struct {
	ChatRoom    `bson:",inline"`
	LastMessage *ChatMessage `bson:"last_message,omitempty"`
}

// CreateRoomRequest find or create room body
type CreateRoomRequest struct {
	ContextID    string   `json:"context_id" validate:"required"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required,excludes=_"`
}

// RoomView enriched room for clients
type RoomView struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Picture       string           `json:"picture,omitempty"`
	Participants  []string         `json:"participants"`
	Users         []ProfileSummary `json:"users"`
	Context       *ContextSummary  `json:"context,omitempty"`
	LastMessage   *MessageView     `json:"last_message,omitempty"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	UnreadCount   int              `json:"unread_count"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
