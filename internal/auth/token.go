// Package auth issues and validates the HS256 bearer tokens used by the API.
// Session management beyond token expiry is out of scope for this service.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/middleware"
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	ProfileID string `json:"profile_id"`
	Handle    string `json:"handle"`
	Admin     bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewTokenService(signingKey string, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer, ttl: ttl}
}

// Generate signs an access token for the given profile.
func (s *TokenService) Generate(profileID domain.ProfileID, handle string, admin bool) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ProfileID: profileID.String(),
		Handle:    handle,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning middleware claims.
func (s *TokenService) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.TokenClaims{
		ProfileID: claims.ProfileID,
		Handle:    claims.Handle,
		Admin:     claims.Admin,
	}, nil
}
