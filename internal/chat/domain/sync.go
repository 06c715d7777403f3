package domain

import "time"

// ChangeSet created / updated / deleted lists of one table
type ChangeSet[T any] struct {
	Created []T      `json:"created"`
	Updated []T      `json:"updated"`
	Deleted []string `json:"deleted"`
}

// NewChangeSet empty lists (never null in json)
func NewChangeSet[T any]() ChangeSet[T] {
	return ChangeSet[T]{Created: []T{}, Updated: []T{}, Deleted: []string{}}
}

// SyncChanges pull response changes
type SyncChanges struct {
	Conversations ChangeSet[RoomView]    `json:"conversations"`
	Messages      ChangeSet[MessageView] `json:"messages"`
}

// PullResponse GET /sync
type PullResponse struct {
	Changes   SyncChanges `json:"changes"`
	Timestamp int64       `json:"timestamp"`
}

// PushMessage offline-created message, ID is the client local id
type PushMessage struct {
	ID          string       `json:"id" validate:"required,max=128"`
	RoomID      string       `json:"room_id" validate:"required,objectid"`
	Type        MessageType  `json:"type" validate:"omitempty,oneof=text image voice file"`
	Text        string       `json:"text" validate:"max=4000"`
	Attachments []Attachment `json:"attachments" validate:"omitempty,dive"`
	ReplyTo     string       `json:"reply_to" validate:"omitempty,objectid"`
}

// PushChanges POST /sync changes
type PushChanges struct {
	Messages struct {
		Created []PushMessage `json:"created" validate:"dive"`
	} `json:"messages"`
}

// PushRequest POST /sync body
type PushRequest struct {
	Changes      PushChanges `json:"changes"`
	LastPulledAt int64       `json:"last_pulled_at"`
}

// PushFailure one rejected entry
type PushFailure struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// ApplyResult POST /sync outcome
type ApplyResult struct {
	Success    bool          `json:"success"`
	Applied    []string      `json:"applied"`
	Duplicates []string      `json:"duplicates"`
	Failed     []PushFailure `json:"failed"`
}

// MillisToTime unix ms -> time, 0 = zero time
func MillisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
