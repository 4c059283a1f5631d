package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role carried by an operator token.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleViewer UserRole = "VIEWER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// JWTClaims is the payload of operator access tokens. The operator name
// travels in the registered Subject claim.
type JWTClaims struct {
	Role UserRole `json:"role"`
	jwt.RegisteredClaims
}
