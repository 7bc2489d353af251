package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"password_hash"`
	Role           Role      `json:"role"`
	Company        string    `json:"company,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUser creates a user with a fresh id and the default role. The password
// hash is set by the caller.
func NewUser(username, email string) *User {
	return &User{
		ID:        NewID(),
		Username:  username,
		Email:     email,
		Role:      RoleUser,
		CreatedAt: Now(),
	}
}

func (u *User) EntityID() string   { return u.ID }
func (u *User) EntityKind() Kind   { return KindUser }
func (u *User) Created() time.Time { return u.CreatedAt }

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) ApplyDefaults() {
	if u.Role != RoleAdmin {
		u.Role = RoleUser
	}
}
