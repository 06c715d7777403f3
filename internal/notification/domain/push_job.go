package domain

import "time"

// PushJob unit handed to the push delivery pipeline
type PushJob struct {
	UserID    string            `json:"user_id"`
	PushToken string            `json:"push_token"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DefaultSound push sound
const DefaultSound = "default"
