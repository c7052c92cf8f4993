package dto

import "github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

type VerifyEmailRequest struct {
	Token string `query:"token" validate:"required,max=128"`
}

type Verify2FARequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Code  string `json:"code" validate:"required,max=16"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the identity assertion handed to clients. It never carries
// the password hash or any pending secret.
type UserResponse struct {
	ID              uint        `json:"id"`
	Email           string      `json:"email"`
	Role            models.Role `json:"role"`
	IsEmailVerified bool        `json:"isEmailVerified"`
}

type AuthResponse struct {
	Message     string       `json:"message"`
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
