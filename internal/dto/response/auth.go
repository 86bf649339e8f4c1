package response

import (
	"time"

	"seat-reservation/internal/data/entity"
)

type AuthResponse struct {
	UserID    string          `json:"user_id"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Role      entity.UserRole `json:"role"`
}

func AuthToResponse(user *entity.User, session *entity.Session) AuthResponse {
	resp := AuthResponse{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	}

	if session != nil {
		resp.Token = session.Token.String()
		resp.ExpiresAt = session.ExpiresAt
	}

	return resp
}
