package utils

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	KindUser  = "user"
	KindGuest = "guest"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify either a registered user or a guest session.
type Claims struct {
	Kind    string `json:"kind"`
	UserId  uint64 `json:"user_id,omitempty"`
	GuestId uint64 `json:"guest_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Plan    string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// IsUser reports whether the claims belong to a registered user.
func (c *Claims) IsUser() bool {
	return c != nil && c.Kind == KindUser && c.UserId != 0
}

// IsGuest reports whether the claims belong to a guest session.
func (c *Claims) IsGuest() bool {
	return c != nil && c.Kind == KindGuest && c.GuestId != 0
}

// GenerateToken creates an HS256 JWT valid for ttl.
func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.NotBefore = jwt.NewNumericDate(now)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Println("Error signing token:", err)
		return "", err
	}
	return tokenString, nil
}

// VerifyToken parses and validates a JWT.
func VerifyToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
