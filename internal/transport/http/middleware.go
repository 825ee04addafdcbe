package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom-session-service/internal/auth"
	"classroom-session-service/internal/domain"
)

const contextPrincipal = "principal"

// Authenticate validates the bearer token and stores the principal in the
// gin context. The engine trusts this principal for all role and ownership
// checks downstream.
func Authenticate(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondUnauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondUnauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			respondUnauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(contextPrincipal, claims.Principal())
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	return c.MustGet(contextPrincipal).(domain.Principal)
}

// Logger returns a zap-based request logging middleware.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("request",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
