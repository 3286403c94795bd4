package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Name   string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to shop staff.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Name   string     `json:"name"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}
