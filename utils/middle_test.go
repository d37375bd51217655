package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdentityMiddleware(secret))
	r.GET("/whoami", AuthMiddleware(), func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		c.JSON(http.StatusOK, gin.H{"kind": claims.Kind})
	})
	r.POST("/ops", StaticTokenMiddleware("op-token"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestIdentityFromBearerAndCookie(t *testing.T) {
	r := newIdentityRouter("s")
	user, err := GenerateToken("s", Claims{Kind: KindUser, UserId: 1}, time.Hour)
	require.NoError(t, err)
	guest, err := GenerateToken("s", Claims{Kind: KindGuest, GuestId: 2}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user"`)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieGuestToken, Value: guest})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"guest"`)
}

func TestAuthMiddlewareRejectsAnonymous(t *testing.T) {
	r := newIdentityRouter("s")
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaticTokenMiddleware(t *testing.T) {
	r := newIdentityRouter("s")

	req := httptest.NewRequest(http.MethodPost, "/ops", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/ops", nil)
	req.Header.Set("Authorization", "Bearer op-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
