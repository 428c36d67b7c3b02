package auth

import (
	"time"
)

// AdminUser is an administrator account. PasswordHash never leaves the server.
type AdminUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"isActive"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity returns the session-relevant fields of the user
func (u *AdminUser) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Name:     u.Name,
	}
}

// Identity is the authenticated principal
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// Claim is the content of a session token
type Claim struct {
	Identity
	ExpiresAt time.Time `json:"exp"`
}

// AuthContext holds the authenticated session of a request
type AuthContext struct {
	Claim Claim
}

// UserID returns the authenticated user's id
func (ac *AuthContext) UserID() string {
	return ac.Claim.ID
}

// Role returns the role embedded in the session at issuance
func (ac *AuthContext) Role() string {
	return ac.Claim.Role
}
