package models

import "time"

type SessionState string

const (
	SessionPending       SessionState = "pending"
	SessionAuthenticated SessionState = "authenticated"
	SessionClosed        SessionState = "closed"
)

// Session is one connected client. LastAckedID only moves forward.
type Session struct {
	ID          string
	User        string
	Device      string
	State       SessionState
	LastAckedID int64
	Degraded    bool
	ConnectedAt time.Time
}

// Cursor is the durable acknowledgment point of a user's device.
type Cursor struct {
	UserName    string
	Device      string
	LastAckedID int64
	UpdatedAt   time.Time
}
