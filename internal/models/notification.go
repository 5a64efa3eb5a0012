package models

import "time"

// Notification levels.
const (
	NotificationSuccess = "success"
	NotificationError   = "error"
)

// Notification is an out-of-band event raised by mutations and scans.
type Notification struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Source  string    `json:"source"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}
