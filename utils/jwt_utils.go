package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenType is the token type accepted on API requests.
const AccessTokenType = "access"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload issued by the auth service.
type Claims struct {
	UserID   string `json:"userId"`
	UserType string `json:"user_type,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 access token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if claims.Type != AccessTokenType {
		return nil, fmt.Errorf("%w: token type %q", ErrInvalidToken, claims.Type)
	}

	return claims, nil
}

// GenerateToken signs an access token for the user. Tokens are normally issued
// by the auth service; this is used for local runs and tests.
func GenerateToken(secret, userID, userType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		UserType: userType,
		Type:     AccessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return signed, nil
}
