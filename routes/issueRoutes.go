package routes

import (
	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, d Deps) {
	issue := r.Group("/api/issues")
	{
		issue.GET("", d.OptionalAuth, d.Issues.GetAllIssues)
		issue.GET("/recent", d.Issues.RecentIssues)
		issue.GET("/analytics", d.Issues.GetIssueAnalytics)
		issue.GET("/:id", d.OptionalAuth, d.Issues.GetIssue)

		issue.POST("", d.RequireAuth, d.IssueLimiter, d.Issues.CreateIssue)
		issue.PUT("/:id", d.RequireAuth, d.Issues.UpdateIssue)
		issue.DELETE("/:id", d.RequireAuth, d.Issues.DeleteIssue)
		issue.POST("/:id/vote", d.RequireAuth, d.Issues.VoteOnIssue)
		issue.PATCH("/:id/status", d.RequireAuth, d.Issues.UpdateIssueStatus)
	}
}
