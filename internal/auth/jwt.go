package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"classroom-session-service/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the authenticated principal. The session engine trusts
// these claims without re-validating credentials; token issuance belongs to
// the identity provider (the dev `token` CLI command mints them locally).
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the engine's principal model.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{
		ID:          c.UserID,
		DisplayName: c.Name,
		Role:        domain.Role(c.Role),
	}
}

// JWTService handles HS256 token generation and validation.
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), ttl: ttl}
}

// Generate creates a signed token for the given principal.
func (s *JWTService) Generate(userID, name string, role domain.Role) (string, error) {
	claims := Claims{
		UserID: userID,
		Name:   name,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a token, returning its claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !domain.Role(claims.Role).Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
