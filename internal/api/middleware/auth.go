package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AdminIDKey is the context key the auth middleware stores the admin's id
// under
const AdminIDKey = "admin_id"

// AdminAuth validates the Bearer token on admin routes and stores the
// authenticated admin's id in the request context
func AdminAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		adminID, err := parseAdminToken(parts[1], jwtSecret)
		if err != nil {
			log.Warn().Err(err).Msg("Rejected admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(AdminIDKey, adminID)
		c.Next()
	}
}

func parseAdminToken(tokenString, jwtSecret string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to parse token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token claims")
	}

	rawID, ok := claims[AdminIDKey].(string)
	if !ok {
		return uuid.Nil, errors.New("token missing admin_id claim")
	}

	adminID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "invalid admin_id claim")
	}
	return adminID, nil
}

// AdminIDFromContext returns the authenticated admin's id set by AdminAuth
func AdminIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(AdminIDKey)
	if !exists {
		return uuid.Nil, false
	}
	adminID, ok := value.(uuid.UUID)
	return adminID, ok
}
