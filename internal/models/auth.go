package models

import "github.com/golang-jwt/jwt/v5"

// UserRole names the roles carried in access tokens.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleExamCell UserRole = "EXAM_CELL"
	RoleStaff    UserRole = "STAFF"
)

// JWTClaims represents the JWT payload issued by the identity provider.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	Email      string   `json:"email"`
	FullName   string   `json:"full_name"`
	Department string   `json:"department,omitempty"`
	jwt.RegisteredClaims
}
