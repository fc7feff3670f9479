package dto

import (
	"time"

	domainuser "tradepost/internal/domain/user"
)

type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func MapUserProfile(user *domainuser.User) UserProfile {
	if user == nil {
		return UserProfile{}
	}
	return UserProfile{
		ID:        string(user.ID),
		Email:     user.Email,
		Name:      user.Name,
		Admin:     user.Admin,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
