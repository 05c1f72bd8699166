package models

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionRequest carries a session token in a JSON body, used by
// logout and verify-session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// ForgotPasswordRequest is the POST /auth/forgot-password body.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest is the POST /auth/reset-password body.
type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required"`
	OTP             string `json:"otp" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChatRequest is the POST /chat/send body.
type ChatRequest struct {
	Message       string `json:"message" binding:"required"`
	SelectedFile  string `json:"selected_file"`
	ChatSessionID string `json:"chat_session_id"`
}

// DeleteFileRequest is the POST /files/delete body.
type DeleteFileRequest struct {
	Filename string `json:"filename" binding:"required"`
}
