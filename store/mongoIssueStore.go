package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoIssueStore struct {
	issues *mongo.Collection
}

func NewMongoIssueStore(db *mongo.Database) *MongoIssueStore {
	return &MongoIssueStore{issues: db.Collection("issues")}
}

// EnsureIndexes creates the indexes the feed and my-issues queries rely on.
func (s *MongoIssueStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.issues.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *MongoIssueStore) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.VotedBy == nil {
		issue.VotedBy = []primitive.ObjectID{}
	}
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("inserting issue: %w", err)
	}
	return nil
}

func (s *MongoIssueStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding issue: %w", err)
	}
	return &issue, nil
}

// listFilter builds the query document for a feed page.
func listFilter(q ListQuery) bson.M {
	filter := bson.M{}
	if q.Filter.Category != "" {
		filter["category"] = q.Filter.Category
	}
	if q.Filter.Status != "" {
		filter["status"] = q.Filter.Status
	}
	if q.Search != "" {
		pattern := regexp.QuoteMeta(q.Search)
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter
}

func listSort(q ListQuery) bson.D {
	if q.Sort == SortOldest {
		return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
}

func (s *MongoIssueStore) List(ctx context.Context, q ListQuery) ([]models.Issue, int64, error) {
	q = q.Normalize()
	filter := listFilter(q)

	total, err := s.issues.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting issues: %w", err)
	}

	findOptions := options.Find().
		SetSort(listSort(q)).
		SetSkip(q.Skip()).
		SetLimit(int64(q.Limit))

	issues, err := s.find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

func (s *MongoIssueStore) ListByCreator(ctx context.Context, creator primitive.ObjectID) ([]models.Issue, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, bson.M{"createdBy": creator}, findOptions)
}

func (s *MongoIssueStore) Recent(ctx context.Context, limit int) ([]models.Issue, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	return s.find(ctx, bson.M{}, findOptions)
}

func (s *MongoIssueStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Issue, error) {
	cursor, err := s.issues.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieving issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decoding issues: %w", err)
	}
	return issues, nil
}

// patchSet turns a patch into the $set document.
func patchSet(patch models.IssuePatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.ImageURL != nil {
		set["imageUrl"] = *patch.ImageURL
	}
	return set
}

func (s *MongoIssueStore) Update(ctx context.Context, id, author primitive.ObjectID, patch models.IssuePatch, now time.Time) (*models.Issue, error) {
	filter := bson.M{"_id": id, "createdBy": author, "status": models.Pending}
	return s.findOneAndUpdate(ctx, id, filter, bson.M{"$set": patchSet(patch, now)})
}

func (s *MongoIssueStore) Delete(ctx context.Context, id, author primitive.ObjectID) error {
	res, err := s.issues.DeleteOne(ctx, bson.M{"_id": id, "createdBy": author, "status": models.Pending})
	if err != nil {
		return fmt.Errorf("deleting issue: %w", err)
	}
	if res.DeletedCount == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

func (s *MongoIssueStore) AddVote(ctx context.Context, id, voter primitive.ObjectID) (*models.Issue, error) {
	filter := bson.M{"_id": id, "votedBy": bson.M{"$ne": voter}}
	update := bson.M{
		"$addToSet": bson.M{"votedBy": voter},
		"$inc":      bson.M{"votes": 1},
	}
	return s.findOneAndUpdate(ctx, id, filter, update)
}

func (s *MongoIssueStore) SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.IssueStatus, now time.Time) (*models.Issue, error) {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": now}}
	return s.findOneAndUpdate(ctx, id, filter, update)
}

func (s *MongoIssueStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, filter, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.missOrConflict(ctx, id)
		}
		return nil, fmt.Errorf("updating issue: %w", err)
	}
	return &issue, nil
}

// missOrConflict tells a vanished issue apart from a failed precondition.
func (s *MongoIssueStore) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	count, err := s.issues.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("checking issue: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *MongoIssueStore) Analytics(ctx context.Context, now time.Time) (*models.Analytics, error) {
	out := &models.Analytics{}

	categoryPipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
		{{Key: "$project", Value: bson.M{"name": "$_id", "value": "$count", "_id": 0}}},
	}
	categoryCursor, err := s.issues.Aggregate(ctx, categoryPipeline)
	if err != nil {
		return nil, fmt.Errorf("category analytics: %w", err)
	}
	defer categoryCursor.Close(ctx)
	out.IssuesByCategory = []models.CategoryCount{}
	if err := categoryCursor.All(ctx, &out.IssuesByCategory); err != nil {
		return nil, fmt.Errorf("decoding category analytics: %w", err)
	}
	sort.Slice(out.IssuesByCategory, func(i, j int) bool {
		return out.IssuesByCategory[i].Name < out.IssuesByCategory[j].Name
	})

	for _, day := range lastSevenDays(now) {
		count, err := s.issues.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)},
		})
		if err != nil {
			return nil, fmt.Errorf("daily analytics: %w", err)
		}
		out.Last7Days = append(out.Last7Days, models.DayCount{Date: day.Format("2006-01-02"), Count: count})
	}

	// Top voted among the most recent issues.
	topPipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$limit", Value: TopVotedWindow}},
		{{Key: "$sort", Value: bson.D{{Key: "votes", Value: -1}, {Key: "createdAt", Value: -1}}}},
		{{Key: "$limit", Value: TopVotedCount}},
		{{Key: "$project", Value: bson.M{"title": 1, "category": 1, "votes": 1}}},
	}
	topCursor, err := s.issues.Aggregate(ctx, topPipeline)
	if err != nil {
		return nil, fmt.Errorf("vote analytics: %w", err)
	}
	defer topCursor.Close(ctx)
	out.TopVotedIssues = []models.IssueVotes{}
	if err := topCursor.All(ctx, &out.TopVotedIssues); err != nil {
		return nil, fmt.Errorf("decoding vote analytics: %w", err)
	}

	if out.TotalIssues, err = s.issues.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, fmt.Errorf("counting issues: %w", err)
	}
	if out.OpenIssues, err = s.issues.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []models.IssueStatus{models.Pending, models.InProgress}},
	}); err != nil {
		return nil, fmt.Errorf("counting open issues: %w", err)
	}

	votesCursor, err := s.issues.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$votes"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("counting votes: %w", err)
	}
	defer votesCursor.Close(ctx)
	var totals []struct {
		Total int64 `bson:"total"`
	}
	if err := votesCursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("decoding vote total: %w", err)
	}
	if len(totals) > 0 {
		out.TotalVotes = totals[0].Total
	}

	return out, nil
}
