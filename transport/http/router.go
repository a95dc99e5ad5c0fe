package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router
func SetupRouter(s *Server) *gin.Engine {
	router := gin.Default()

	// The gate runs before every route; public routes pass through inside it.
	router.Use(s.RequestGate())

	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/login", s.LoginPage)

	session := router.Group("/session")
	{
		session.POST("/login", s.Login)
		session.POST("/logout", s.Logout)
		session.POST("/oauth/:provider", s.OAuthCallback)
	}

	api := router.Group("/api")
	{
		api.Any("/proxy", s.Proxy)
		api.GET("/events", s.Events)
	}

	// Protected routes. Page rendering belongs to the frontend; these exist
	// so the gate has concrete routes to guard.
	router.GET("/organizations", s.Me)
	router.GET("/app/me", s.Me)

	return router
}
