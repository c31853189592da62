package middleware

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bus_tracker/internal/auth"
)

const (
	TokenTTL = 72 * time.Hour

	ctxUserID = "user_id"
	ctxRole   = "role"
)

var (
	secretMu sync.RWMutex
	secret   = []byte("supersecret") // fallback
)

// SetSecret replaces the HMAC key used to sign and check tokens.
func SetSecret(s string) {
	if s == "" {
		return
	}
	secretMu.Lock()
	secret = []byte(s)
	secretMu.Unlock()
}

func signingKey() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return secret
}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(userID string, role auth.Role) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role.Claim(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey())
}

func ValidateToken(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return signingKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

// RequireAuth ensures a valid JWT is present
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c) {
			c.Next()
		}
	}
}

// RequireRole ensures the JWT is valid and carries one of the given roles.
func RequireRole(allowed ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c) {
			return
		}
		role := RoleOf(c)
		for _, r := range allowed {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// authenticate validates the bearer token and stores its claims on the
// context. It aborts the request and returns false on failure.
func authenticate(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
		return false
	}

	claims, err := ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return false
	}
	role := auth.RoleFromClaim(claims.Role)
	if !auth.Authenticated(role) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
		return false
	}

	// Store claims in context for downstream handlers
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxRole, role)
	return true
}

// UserID returns the authenticated user's id, or "".
func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// RoleOf returns the caller's role. Requests without a token are guests.
func RoleOf(c *gin.Context) auth.Role {
	if v, ok := c.Get(ctxRole); ok {
		if r, ok := v.(auth.Role); ok {
			return r
		}
	}
	return auth.Guest
}
