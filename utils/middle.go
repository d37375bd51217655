package utils

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CookieAuthToken  = "auth_token"
	CookieGuestToken = "guest_token"

	ctxClaims = "claims"
)

func bearerToken(c *gin.Context) string {
	tokenParts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(tokenParts) == 2 && tokenParts[0] == "Bearer" {
		return tokenParts[1]
	}
	return ""
}

// IdentityMiddleware attaches claims from the bearer token, the auth cookie
// or the guest cookie, in that order. Requests without a valid token pass
// through anonymously.
func IdentityMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates := []string{bearerToken(c)}
		if v, err := c.Cookie(CookieAuthToken); err == nil {
			candidates = append(candidates, v)
		}
		if v, err := c.Cookie(CookieGuestToken); err == nil {
			candidates = append(candidates, v)
		}
		for _, token := range candidates {
			if token == "" {
				continue
			}
			if claims, err := VerifyToken(secret, token); err == nil {
				c.Set(ctxClaims, claims)
				break
			}
		}
		c.Next()
	}
}

// AuthMiddleware rejects requests without a user or guest identity.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentClaims(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// StaticTokenMiddleware guards operator endpoints with a shared bearer token.
// An empty expected token disables the endpoint.
func StaticTokenMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := bearerToken(c)
		if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentClaims returns the identity attached by IdentityMiddleware.
func CurrentClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && (claims.IsUser() || claims.IsGuest())
}

// SetClaims attaches an identity minted during the request.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(ctxClaims, claims)
}
