package models

import "time"

// FollowRequest is a pending or resolved request to follow a user
type FollowRequest struct {
	ID           string              `json:"id"`
	FromUsername string              `json:"fromUsername"`
	FromEmail    string              `json:"fromEmail,omitempty"`
	ToUsername   string              `json:"toUsername"`
	ToEmail      string              `json:"toEmail,omitempty"`
	Status       FollowRequestStatus `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	RespondedAt  *time.Time          `json:"respondedAt,omitempty"`
}

// Notification is an inbox entry
type Notification struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"userEmail"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ContentSK string    `json:"contentSK,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification types created by this client
const (
	NotificationVideoReady = "video_ready"
)
