package users

import "time"

// User is an identity record. PasswordHash is a bcrypt digest.
type User struct {
	ID                 string
	Username           string
	NormalizedUsername string
	PasswordHash       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Role is a named administrative grouping.
type Role struct {
	ID             string
	Name           string
	NormalizedName string
	CreatedAt      time.Time
}
