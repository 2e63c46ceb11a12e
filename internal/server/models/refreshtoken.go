package models

import "time"

// RefreshToken is a long-lived token that trades for a new access token.
// Each token is single use: a refresh deletes it and issues a fresh pair.
type RefreshToken struct {
	UserName  string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the token is no longer valid at now.
func (t RefreshToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.Expires)
}
