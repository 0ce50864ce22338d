package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsKey is the gin context key holding the verified claims
const ClaimsKey = "claims"

// AdminRole is required on tokens that may trigger admin operations
const AdminRole = "admin"

// Claims are the JWT claims accepted by the API
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for subject with the given role
func IssueToken(secret, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies an HS256 token and returns its claims
func ParseToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Auth middleware requires a bearer token carrying role
func Auth(secret, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortAuth(c, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		if claims.Role != role {
			abortAuth(c, http.StatusForbidden, "Insufficient role", errors.New("role "+claims.Role))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func abortAuth(c *gin.Context, code int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, gin.H{
		"code":    code,
		"message": message,
	})
}
