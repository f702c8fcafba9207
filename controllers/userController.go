package controllers

import (
	"net/http"

	"civicsync/middlewares"
	"civicsync/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	issues *services.IssueService
}

func NewUserController(issues *services.IssueService) *UserController {
	return &UserController{issues: issues}
}

// GetMyIssues lists the caller's own issues, newest first.
func (uc *UserController) GetMyIssues(c *gin.Context) {
	issues, err := uc.issues.ListByCreator(c.Request.Context(), middlewares.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}
