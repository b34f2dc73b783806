package main

import (
	"onevizn-platform/internal/httpapi"
	"onevizn-platform/internal/roles"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Auth lifecycle. Refresh and logout run behind the token middleware:
	// the bearer token on the request is their only credential.
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.POST("/refresh", authMW, h.Refresh)
		auth.POST("/logout", authMW, h.Logout)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)
		v1.PUT("/me", h.UpdateMe)

		// ADMIN routes, gated on the same hierarchy the shell uses.
		admin := v1.Group("/admin")
		admin.Use(roles.RequireMinRole(roles.RoleManager))
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
			admin.GET("/users", h.ListUsers)
		}
	}
}
