package domain

import (
	"context"
	"time"
)

// ProfileSummary participant profile shown in rooms and messages
type ProfileSummary struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ContextSummary task the room is about
type ContextSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status,omitempty"`
	Location  string    `json:"location,omitempty"`
	Incentive float64   `json:"incentive,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileReader participant profile lookup
type ProfileReader interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]ProfileSummary, error)
}

// ContextResolver task lookup, returns not_found kind when absent
type ContextResolver interface {
	Resolve(ctx context.Context, contextID string) (*ContextSummary, error)
	Summaries(ctx context.Context, ids []string) (map[string]ContextSummary, error)
}

// PushNotification push payload for offline participants
type PushNotification struct {
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier push dispatcher, failures never roll back a message
type Notifier interface {
	Notify(ctx context.Context, n PushNotification) error
}
