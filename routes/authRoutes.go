package routes

import (
	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, d Deps) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", d.Auth.RegisterUser)
		auth.POST("/login", d.Auth.LoginUser)
		auth.GET("/profile", d.RequireAuth, d.Auth.GetProfile)
		auth.POST("/logout", d.RequireAuth, d.Auth.LogoutUser)
	}
}
