package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// UsageRepo handles MongoDB operations for the token usage ledger
type UsageRepo interface {
	Append(ctx context.Context, record *model.TokenUsageRecord) error
	// SumSince returns the total tokens a user consumed at or after since.
	SumSince(ctx context.Context, userID string, since time.Time) (int, error)
	// Since returns a user's ledger entries at or after since, oldest first.
	Since(ctx context.Context, userID string, since time.Time) ([]*model.TokenUsageRecord, error)
}

type usageRepo struct {
	collection *mongo.Collection
}

// NewUsageRepo creates a new usage repository
func NewUsageRepo(db *mongo.Database) UsageRepo {
	return &usageRepo{
		collection: db.Collection("token_usage"),
	}
}

func (r *usageRepo) Append(ctx context.Context, record *model.TokenUsageRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.TotalTokens = record.InputTokens + record.OutputTokens

	_, err := r.collection.InsertOne(ctx, record)
	return err
}

func (r *usageRepo) SumSince(ctx context.Context, userID string, since time.Time) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId":    userID,
			"timestamp": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$totalTokens"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *usageRepo) Since(ctx context.Context, userID string, since time.Time) ([]*model.TokenUsageRecord, error) {
	filter := bson.M{
		"userId":    userID,
		"timestamp": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*model.TokenUsageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
