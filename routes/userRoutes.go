package routes

import (
	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine, d Deps) {
	users := r.Group("/api/users")
	{
		users.GET("/my-issues", d.RequireAuth, d.Users.GetMyIssues)
	}
}
