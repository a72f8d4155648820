package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/utils"
)

const (
	ctxJWTSecret = "jwtSecret"
	ctxUserID    = "userID"
)

// JWTSecretMiddleware makes the signing key available to AuthMiddleware
func JWTSecretMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		c.Set(ctxJWTSecret, key)
		c.Next()
	}
}

// AuthMiddleware returns a Gin middleware for authentication
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			abortUnauthorized(c, "Invalid token format")
			return
		}

		jwtSecret := c.MustGet(ctxJWTSecret).([]byte)
		token, err := jwt.Parse(strings.TrimSpace(tokenString), func(token *jwt.Token) (interface{}, error) {
			return jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		userID, err := token.Claims.GetSubject()
		if err != nil || userID == "" {
			abortUnauthorized(c, "Invalid user ID in token")
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// RequestLogger logs one line per request through the application logger
func RequestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Status:  "error",
		Code:    "UNAUTHORIZED",
		Message: message,
	})
}

// currentUserID returns the authenticated caller set by AuthMiddleware
func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
