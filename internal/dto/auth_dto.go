package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type UserDTO struct {
	Id         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LoginResponse struct {
	User  UserDTO `json:"user"`
	Token string  `json:"token"`
}

// RegisterResult distinguishes full success from the partial-success path
// where the account exists but the verification mail could not be delivered.
type RegisterResult struct {
	UserId        uuid.UUID
	Email         string
	EmailDeferred bool
}

// VerificationMailMessage is the payload queued for the mail consumer.
type VerificationMailMessage struct {
	Email string `json:"email"`
	Token string `json:"token"`
}
