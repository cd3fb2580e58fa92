package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/john0isaac/fastroom/internal/auth"
	"github.com/john0isaac/fastroom/pkg/log"
)

// NewRouter builds the gin engine with all HTTP and websocket routes.
func NewRouter(authSvc *auth.Service, authHandler *AuthHandler, roomHandler *RoomHandler, wsHandler *WSHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(log.L()))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	r.GET("/ws", wsHandler.HandleWebSocket)

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/token", authHandler.Token)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	authed := v1.Group("")
	authed.Use(AuthMiddleware(authSvc))
	{
		authed.GET("/users/me", authHandler.Me)

		rooms := authed.Group("/rooms")
		rooms.GET("", roomHandler.List)
		rooms.POST("", roomHandler.Create)
		rooms.GET("/by-name/:name", roomHandler.GetByName)
		rooms.GET("/:id", roomHandler.Get)
		rooms.PATCH("/:id", roomHandler.Update)
		rooms.DELETE("/:id", roomHandler.Delete)
		rooms.GET("/:id/presence", roomHandler.Presence)
		rooms.GET("/:id/members", roomHandler.ListMembers)
		rooms.POST("/:id/members", roomHandler.Join)
		rooms.PATCH("/:id/members/:user_id", roomHandler.UpdateMember)
		rooms.DELETE("/:id/members/:user_id", roomHandler.RemoveMember)
		rooms.GET("/:id/messages", roomHandler.ListMessages)
		rooms.PATCH("/:id/messages/:message_id", roomHandler.UpdateMessage)
		rooms.DELETE("/:id/messages/:message_id", roomHandler.DeleteMessage)
	}

	return r
}
