package routes

import (
	"net/http"

	"civicsync/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the route table needs.
type Deps struct {
	Auth   *controllers.AuthController
	Issues *controllers.IssueController
	Users  *controllers.UserController

	RequireAuth  gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	IssueLimiter gin.HandlerFunc

	// Gatherer backs /metrics; nil skips the endpoint.
	Gatherer prometheus.Gatherer
}

// Register mounts every route on r.
func Register(r *gin.Engine, d Deps) {
	AuthRoutes(r, d)
	IssueRoutes(r, d)
	UserRoutes(r, d)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}
