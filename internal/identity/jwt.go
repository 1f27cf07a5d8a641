// Package identity adapts the external identity provider's JWTs into the
// Actor the engine works with. Role and active-status claims are trusted
// unconditionally; authorization on top of them is the guard's job.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "gestionale/pkg/domain"
	dErrors "gestionale/pkg/domainerrors"
)

// Claims are the token claims the identity provider asserts.
type Claims struct {
	PersonID string `json:"person_id"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
	jwt.RegisteredClaims
}

// JWTService validates access tokens signed by the identity provider.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken mints a token; used by tests and local tooling, the real
// provider signs its own.
func (s *JWTService) GenerateToken(actor id.Actor, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PersonID: actor.ID.String(),
		Role:     string(actor.Role),
		Active:   actor.Active,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning the asserted actor.
func (s *JWTService) ValidateToken(tokenString string) (id.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	personID, err := id.ParsePersonID(claims.PersonID)
	if err != nil {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid person claim")
	}

	return id.Actor{
		ID:     personID,
		Role:   id.Role(claims.Role),
		Active: claims.Active,
	}, nil
}
