package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mcatalog/internal/pkg/errcode"
	"github.com/xxxsen/mcatalog/internal/pkg/jwt"
	"github.com/xxxsen/mcatalog/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// JWTAuth only verifies bearer tokens; they are issued by the account service.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the caller set by JWTAuth.
func UserID(c *gin.Context) string {
	value, _ := c.Get(ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}
