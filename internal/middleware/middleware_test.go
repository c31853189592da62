package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/auth"
)

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "role": RoleOf(c).String()})
	})
	r.GET("/admin", RequireRole(auth.Admin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenRoundTrip(t *testing.T) {
	SetSecret("test-secret")
	tok, err := GenerateToken("u1", auth.Driver)
	require.NoError(t, err)

	claims, err := ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "DRIVER", claims.Role)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)

	SetSecret("other-secret")
	_, err = ValidateToken(tok)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	SetSecret("test-secret")
	r := router()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)

	tok, _ := GenerateToken("u1", auth.Driver)
	w := get(r, "/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"driver"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", tok).Code)
	admin, _ := GenerateToken("u2", auth.Admin)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", admin).Code)
}

func TestUnknownRoleClaimIsRejected(t *testing.T) {
	SetSecret("test-secret")
	claims := Claims{UserID: "u1", Role: "SUPERUSER", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(router(), "/me", tok).Code)
}

func TestExpiredToken(t *testing.T) {
	SetSecret("test-secret")
	claims := Claims{UserID: "u1", Role: "ADMIN", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	assert.Equal(t, http.StatusUnauthorized, get(router(), "/me", tok).Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
