package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of an access JWT. FamilyID ties the access token
// to the refresh-token family it was issued with, so logout can revoke it.
type TokenClaims struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	Role        UserRole   `json:"role"`
	Permissions Permission `json:"permissions"`
	FamilyID    string     `json:"fid"`
	jwt.RegisteredClaims
}
