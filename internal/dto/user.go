package dto

import (
	"time"

	"github.com/yukikurage/project-tracker/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ProfileDTO is the signed-in user's own view of their account
type ProfileDTO struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	Company        string      `json:"company,omitempty"`
	ProfilePicture string      `json:"profile_picture,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

func toUserDTOPtr(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	u := ToUserDTO(*user)
	return &u
}

// ToProfileDTO converts a User model to ProfileDTO. The password hash never
// leaves the server.
func ToProfileDTO(user models.User) ProfileDTO {
	return ProfileDTO{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Role:           user.Role,
		Company:        user.Company,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt,
	}
}
