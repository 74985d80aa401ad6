package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// OperatorClaims identify a back-office user or POS integration.
type OperatorClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
