package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type CategoryCount struct {
	Name  string `bson:"name" json:"name"`
	Value int64  `bson:"value" json:"value"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type IssueVotes struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Title    string             `bson:"title" json:"title"`
	Category IssueCategory      `bson:"category" json:"category"`
	Votes    int                `bson:"votes" json:"votes"`
}

// Analytics summarizes the issue collection for the dashboard.
type Analytics struct {
	IssuesByCategory []CategoryCount `json:"issuesByCategory"`
	Last7Days        []DayCount      `json:"last7Days"`
	TopVotedIssues   []IssueVotes    `json:"topVotedIssues"`
	TotalIssues      int64           `json:"totalIssues"`
	TotalVotes       int64           `json:"totalVotes"`
	OpenIssues       int64           `json:"openIssues"`
}
