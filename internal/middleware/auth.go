package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
)

const (
	ContextKeyAnalyst = "analyst"
	ContextKeyClaims  = "claims"
)

// Claims are the bearer-token claims accepted by the API. Name is optional
// and preferred over the subject when recording who ran an analysis.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// TokenValidator validates HS256 bearer tokens issued for the API.
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator creates a validator from the auth config.
func NewTokenValidator(cfg config.AuthConfig) *TokenValidator {
	return &TokenValidator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// Enabled reports whether a secret is configured.
func (v *TokenValidator) Enabled() bool {
	return len(v.secret) > 0
}

// Validate parses and verifies tokenString.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", errors.Join(domain.ErrUnauthorized, err))
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// AuthMiddleware returns Gin middleware that validates bearer tokens and
// records the caller as the analyst of the request. With no secret
// configured every request passes unauthenticated.
func AuthMiddleware(v *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		claims, err := v.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		analyst := claims.Name
		if analyst == "" {
			analyst = claims.Subject
		}
		c.Set(ContextKeyAnalyst, analyst)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetAnalyst returns the authenticated caller, or "" when auth is disabled.
func GetAnalyst(c *gin.Context) string {
	return c.GetString(ContextKeyAnalyst)
}
