package domain

import "time"

// AuthContext contains authenticated dietitian info for request context
type AuthContext struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"` // Browser/tab session; used as change origin
}

// TokenClaims represents the JWT token payload issued by the auth service
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired checks if the token has expired
func (c *TokenClaims) IsExpired() bool {
	return time.Now().Unix() > c.ExpiresAt
}

// AuthContext converts claims to an AuthContext
func (c *TokenClaims) AuthContext() *AuthContext {
	return &AuthContext{
		UserID:    c.UserID,
		Email:     c.Email,
		SessionID: c.SessionID,
	}
}
