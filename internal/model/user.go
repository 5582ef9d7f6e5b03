package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account allowed to manage patient records
type User struct {
	Base
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	ResetToken       *string    `json:"-" db:"reset_token"`
	ResetTokenExpiry *time.Time `json:"-" db:"reset_token_expiry"`
}

// HasValidResetToken reports whether token matches the stored reset token
// and has not expired at now.
func (u *User) HasValidResetToken(token string, now time.Time) bool {
	if u.ResetToken == nil || u.ResetTokenExpiry == nil || token == "" {
		return false
	}
	return *u.ResetToken == token && now.Before(*u.ResetTokenExpiry)
}

// ClearResetToken drops any pending reset token.
func (u *User) ClearResetToken() {
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// Dataset groups the patients brought in by one CSV upload.
type Dataset struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
	UploadedBy   *uuid.UUID `json:"uploaded_by,omitempty" db:"uploaded_by"`
	PatientCount int64      `json:"patient_count" db:"patient_count"`
}
