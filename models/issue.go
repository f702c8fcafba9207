package models

import (
	"strings"
	"time"

	"civicsync/apperr"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Infrastructure IssueCategory = "Infrastructure"
	Safety         IssueCategory = "Safety"
	Environment    IssueCategory = "Environment"
	PublicServices IssueCategory = "Public Services"
	Other          IssueCategory = "Other"
)

// Categories lists every category in display order.
var Categories = []IssueCategory{Infrastructure, Safety, Environment, PublicServices, Other}

func (c IssueCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Location is where the issue was reported. Address is free text and optional.
type Location struct {
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
	Address string  `bson:"address,omitempty" json:"address,omitempty"`
}

func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Issue represents a civic issue reported by a user
type Issue struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Category    IssueCategory        `bson:"category" json:"category"`
	Location    Location             `bson:"location" json:"location"`
	ImageURL    *string              `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Status      IssueStatus          `bson:"status" json:"status"`
	Votes       int                  `bson:"votes" json:"votes"`
	VotedBy     []primitive.ObjectID `bson:"votedBy" json:"votedBy"`
	CreatedBy   Creator              `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsAuthor reports whether principal owns the issue.
func (i *Issue) IsAuthor(principal primitive.ObjectID) bool {
	return !principal.IsZero() && i.CreatedBy.ID() == principal
}

// Clone returns a deep copy so cached views never share slices.
func (i Issue) Clone() Issue {
	out := i
	if i.VotedBy != nil {
		out.VotedBy = append([]primitive.ObjectID(nil), i.VotedBy...)
	}
	if i.ImageURL != nil {
		url := *i.ImageURL
		out.ImageURL = &url
	}
	return out
}

// NewIssue carries the fields a reporter supplies at creation.
type NewIssue struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    IssueCategory `json:"category"`
	Location    *Location     `json:"location"`
	ImageURL    *string       `json:"imageUrl,omitempty"`
}

// Validate checks the required fields. A report without a location is
// rejected rather than pinned to 0,0.
func (n NewIssue) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fieldError("Please enter a title")
	}
	if strings.TrimSpace(n.Description) == "" {
		return fieldError("Please enter a description")
	}
	if !n.Category.Valid() {
		return fieldError("Please select a category")
	}
	if n.Location == nil || !n.Location.Valid() {
		return fieldError("Please select a location on the map")
	}
	return nil
}

func fieldError(msg string) error {
	return apperr.E(apperr.Validation, msg)
}

// IssuePatch is a partial edit; nil fields are left unchanged.
type IssuePatch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Category    *IssueCategory `json:"category,omitempty"`
	Location    *Location      `json:"location,omitempty"`
	ImageURL    *string        `json:"imageUrl,omitempty"`
}

func (p IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Location == nil && p.ImageURL == nil
}

func (p IssuePatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fieldError("Please enter a title")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return fieldError("Please enter a description")
	}
	if p.Category != nil && !p.Category.Valid() {
		return fieldError("Invalid category")
	}
	if p.Location != nil && !p.Location.Valid() {
		return fieldError("Invalid location")
	}
	return nil
}

// Apply writes the patch onto issue.
func (p IssuePatch) Apply(issue *Issue) {
	if p.Title != nil {
		issue.Title = *p.Title
	}
	if p.Description != nil {
		issue.Description = *p.Description
	}
	if p.Category != nil {
		issue.Category = *p.Category
	}
	if p.Location != nil {
		issue.Location = *p.Location
	}
	if p.ImageURL != nil {
		url := *p.ImageURL
		issue.ImageURL = &url
	}
}

// IssueFilter narrows a feed. Empty fields match everything.
type IssueFilter struct {
	Category IssueCategory `json:"category,omitempty"`
	Status   IssueStatus   `json:"status,omitempty"`
}

func (f IssueFilter) Matches(issue Issue) bool {
	if f.Category != "" && issue.Category != f.Category {
		return false
	}
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	return true
}

// FeedPage is one page of the issue feed as computed by the server.
type FeedPage struct {
	Items      []Issue `json:"items"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	HasMore    bool    `json:"hasMore"`
}
