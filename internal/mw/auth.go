package mw

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	SubjectKey              = "subject"

	adminRole = "admin"
)

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 admin token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := adminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*adminClaims, error) {
	claims := &adminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Role != adminRole {
		return nil, fmt.Errorf("role %q is not allowed", claims.Role)
	}
	return claims, nil
}

// AdminAuth requires a valid admin bearer token. With an empty secret every
// request passes, which keeps local setups usable.
func AdminAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		log.Println("Warning: jwt_secret is not set. Admin endpoints are not protected.")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		fields := strings.Fields(c.GetHeader(AuthorizationHeaderKey))
		if len(fields) != 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "error": "missing or malformed authorization header"})
			return
		}

		claims, err := parseToken(secret, fields[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "error": "invalid or expired token"})
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
