package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/config"
)

const (
	OperatorIDKey = "operator_id"
	TokenQuery    = "token"
)

// SessionKey is the cache key that keeps a login token alive.
func SessionKey(token string) string { return "session:" + token }

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for clients that cannot set headers (EventSource).
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return ""
		}
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query(TokenQuery)
}

// Authenticate validates token and checks that its session is still cached.
func Authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (*Claims, error) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, SessionKey(token))
	if err != nil || !exists {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

// Auth requires a valid operator token with a live session.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := Authenticate(ctx.Request.Context(), sec, c, token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		ctx.Set(OperatorIDKey, claims.OperatorID)
		ctx.Next()
	}
}

// GetOperatorID retrieves the authenticated operator ID from the Gin context.
func GetOperatorID(c *gin.Context) int64 {
	if v, exists := c.Get(OperatorIDKey); exists {
		return v.(int64)
	}
	return 0
}
