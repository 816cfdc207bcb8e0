// Package auth guards the console API. Callers present a bearer JWT signed
// with the shared secret; claims carry the subject and a permission list
// that the handlers consult before issuing billing commands.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/config"
)

const permissionsKey = "permissions"

type Middleware struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewMiddleware(cfg *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		cfg:    cfg,
		logger: logger.Named("auth"),
	}
}

// Handler validates the bearer token and injects subject and permissions
// into the request context.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.parseClaims(tokenString)
		if err != nil {
			m.logger.Debug("token_rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		sub, _ := claims.GetSubject()
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_claims"})
			return
		}

		c.Set("subject", sub)
		c.Set(permissionsKey, extractPermissions(claims))
		c.Next()
	}
}

// RequirePermission gates a route group on one permission string, e.g.
// "invoices:retry" or "invoices:bulk-create".
func (m *Middleware) RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(c, perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "required": perm})
			return
		}
		c.Next()
	}
}

// HasPermission reports whether the authenticated caller holds a permission.
func HasPermission(c *gin.Context, perm string) bool {
	val, ok := c.Get(permissionsKey)
	if !ok {
		return false
	}
	perms, ok := val.([]string)
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

func (m *Middleware) parseClaims(tokenString string) (jwt.MapClaims, error) {
	secret := strings.TrimSpace(m.cfg.AuthJWTSecret)
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

func extractPermissions(claims jwt.MapClaims) []string {
	raw, ok := claims["permissions"].([]interface{})
	if !ok {
		return nil
	}
	perms := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			perms = append(perms, s)
		}
	}
	return perms
}
