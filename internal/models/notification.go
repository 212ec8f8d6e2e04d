package models

import "github.com/google/uuid"

// Notification types emitted by the engine.
const (
	NotifyFailKnown = "login-fail-known"
	NotifyFailNew   = "login-fail-new"
	NotifySuccess   = "login-success"
)

// Notification is a request to notify a user about login activity on their
// account. Delivery is owned by the sink; the engine only decides when one
// should be sent.
type Notification struct {
	ID       string `json:"id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Type     string `json:"type"`
	// Count is the accumulated failure count for login-fail-* types.
	// Zero (omitted) for login-success.
	Count int64 `json:"count,omitempty"`
}

// NewNotification builds a notification with a fresh event ID.
func NewNotification(userID int64, username, notifyType string, count int64) Notification {
	return Notification{
		ID:       uuid.New().String(),
		UserID:   userID,
		Username: username,
		Type:     notifyType,
		Count:    count,
	}
}
