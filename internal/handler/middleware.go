package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/john0isaac/fastroom/internal/auth"
	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/pkg/log"
	"github.com/john0isaac/fastroom/pkg/response"
)

const ctxUserKey = "current_user"

// AuthMiddleware validates the bearer token and stores the resolved user in
// the gin context.
func AuthMiddleware(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		user, err := authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set(ctxUserKey, user)
		// Picked up by the request logging middleware.
		c.Set(log.FieldUserID, user.ID)
		c.Set(log.FieldUsername, user.Username)
		c.Next()
	}
}

// currentUser fetches the user placed by AuthMiddleware.
func currentUser(c *gin.Context) *domain.User {
	v, exists := c.Get(ctxUserKey)
	if !exists {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}
