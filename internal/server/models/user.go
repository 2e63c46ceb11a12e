package models

import "time"

// User is a registered author. PasswordHash is a pbkdf2-sha256 hash in
// passlib's modular crypt format.
type User struct {
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}
