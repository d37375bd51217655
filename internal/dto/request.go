package dto

// RegisterRequest is the body of POST /api/user/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body of POST /api/user/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// KeyVerifyRequest checks a lock secret. ID is the file key, Key the secret.
type KeyVerifyRequest struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// SettingRequest writes one override.
type SettingRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}
