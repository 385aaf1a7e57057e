package models

// User represents one operator record from the users slot. The host UI
// owns the record shape; only the fields used for authentication are
// declared here, everything else passes through untouched in the slot.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Active       bool   `json:"active"`
}

// Sanitized returns a copy safe to send to clients
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
