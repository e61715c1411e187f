package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// CallRepo handles MongoDB operations for knowledge call records
type CallRepo interface {
	Create(ctx context.Context, call *model.KnowledgeCall) (string, error)
	// LatestKnowledgeCall returns the newest knowledge-base-only call record
	// for a contact created at or after since, or nil when none exists.
	LatestKnowledgeCall(ctx context.Context, contact string, since time.Time) (*model.KnowledgeCall, error)
	AppendInteraction(ctx context.Context, id string, event model.InteractionEvent) error
}

type callRepo struct {
	collection *mongo.Collection
}

// NewCallRepo creates a new call repository
func NewCallRepo(db *mongo.Database) CallRepo {
	return &callRepo{
		collection: db.Collection("calls"),
	}
}

func (r *callRepo) Create(ctx context.Context, call *model.KnowledgeCall) (string, error) {
	call.Contact = normalizeContact(call.Contact)
	call.CreatedAt = time.Now()
	call.UpdatedAt = call.CreatedAt

	result, err := r.collection.InsertOne(ctx, call)
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", nil
	}
	return oid.Hex(), nil
}

func (r *callRepo) LatestKnowledgeCall(ctx context.Context, contact string, since time.Time) (*model.KnowledgeCall, error) {
	filter := bson.M{
		"contact":           bson.M{"$regex": normalizeContact(contact)},
		"knowledgeBaseOnly": true,
		"createdAt":         bson.M{"$gte": since},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var call model.KnowledgeCall
	err := r.collection.FindOne(ctx, filter, opts).Decode(&call)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *callRepo) AppendInteraction(ctx context.Context, id string, event model.InteractionEvent) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"events": event},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	return err
}
