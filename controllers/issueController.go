package controllers

import (
	"net/http"
	"strconv"

	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/services"
	"civicsync/store"

	"github.com/gin-gonic/gin"
)

type IssueController struct {
	issues *services.IssueService
}

func NewIssueController(issues *services.IssueService) *IssueController {
	return &IssueController{issues: issues}
}

// CreateIssue handles the creation of a new issue. New issues are always Pending.
func (ic *IssueController) CreateIssue(c *gin.Context) {
	var input struct {
		Title       string           `json:"title" binding:"max=200"`
		Description string           `json:"description" binding:"max=1000"`
		Category    string           `json:"category"`
		Location    *models.Location `json:"location"`
		ImageURL    *string          `json:"imageUrl,omitempty" binding:"omitempty,url"`
	}
	if !bindJSON(c, &input) {
		return
	}

	issue, err := ic.issues.Create(c.Request.Context(), middlewares.CurrentUser(c), models.NewIssue{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Location:    input.Location,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues returns one page of the feed with filtering, search and sort.
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultLimit)))

	q := store.ListQuery{
		Search: c.Query("search"),
		Sort:   c.DefaultQuery("sort", store.SortNewest),
		Page:   page,
		Limit:  limit,
	}
	// "all" is what the filter dropdowns send for no filter.
	if category := c.Query("category"); category != "" && category != "all" {
		q.Filter.Category = models.IssueCategory(category)
	}
	if status := c.Query("status"); status != "" && status != "all" {
		q.Filter.Status = models.IssueStatus(status)
	}

	feed, err := ic.issues.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// GetIssue retrieves an issue by its ID with its creator resolved
func (ic *IssueController) GetIssue(c *gin.Context) {
	id, ok := issueIDParam(c)
	if !ok {
		return
	}
	issue, err := ic.issues.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// RecentIssues returns the latest issues for the map view.
func (ic *IssueController) RecentIssues(c *gin.Context) {
	issues, err := ic.issues.Recent(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (ic *IssueController) GetIssueAnalytics(c *gin.Context) {
	out, err := ic.issues.Analytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// UpdateIssue lets the creator edit a Pending issue. Status is not editable here.
func (ic *IssueController) UpdateIssue(c *gin.Context) {
	id, ok := issueIDParam(c)
	if !ok {
		return
	}
	var patch models.IssuePatch
	if !bindJSON(c, &patch) {
		return
	}

	issue, err := ic.issues.Update(c.Request.Context(), middlewares.CurrentUser(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// DeleteIssue lets the creator delete a Pending issue
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	id, ok := issueIDParam(c)
	if !ok {
		return
	}
	if err := ic.issues.Delete(c.Request.Context(), middlewares.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// VoteOnIssue records the caller's vote. Votes cannot be withdrawn.
func (ic *IssueController) VoteOnIssue(c *gin.Context) {
	id, ok := issueIDParam(c)
	if !ok {
		return
	}
	issue, err := ic.issues.Vote(c.Request.Context(), middlewares.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpdateIssueStatus moves an issue forward through its lifecycle.
func (ic *IssueController) UpdateIssueStatus(c *gin.Context) {
	id, ok := issueIDParam(c)
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	issue, err := ic.issues.UpdateStatus(c.Request.Context(), middlewares.CurrentUser(c), id, models.IssueStatus(input.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}
