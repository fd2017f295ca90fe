package handler

import (
	"time"

	"github.com/jmlarsen/flock/internal/domain"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Admin     bool   `json:"admin"`
	Activated bool   `json:"activated"`
	CreatedAt string `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Admin:     u.Admin,
		Activated: u.Activated,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}

// MicropostDTO is the JSON representation of a micropost.
type MicropostDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

func toMicropostDTO(p *domain.Micropost) MicropostDTO {
	return MicropostDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toMicropostDTOs(posts []domain.Micropost) []MicropostDTO {
	dtos := make([]MicropostDTO, len(posts))
	for i := range posts {
		dtos[i] = toMicropostDTO(&posts[i])
	}
	return dtos
}
