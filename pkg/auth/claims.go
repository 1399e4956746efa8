package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Address types.Address
	Role    enums.ActorRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	Address types.Address   `json:"address"`
	Role    enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
