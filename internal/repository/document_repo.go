package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// DocumentRepo handles MongoDB operations for knowledge base documents
type DocumentRepo interface {
	Create(ctx context.Context, doc *model.Document) (string, error)
	GetByID(ctx context.Context, id string) (*model.Document, error)
	// GetByIDOrName resolves a document filter that may be either an ObjectID
	// hex or a human-readable name.
	GetByIDOrName(ctx context.Context, ownerID, idOrName string) (*model.Document, error)
	// GetSearchable returns the owner's processed documents that carry a
	// vector collection reference.
	GetSearchable(ctx context.Context, ownerID string) ([]*model.Document, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id string) error
}

type documentRepo struct {
	collection *mongo.Collection
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *mongo.Database) DocumentRepo {
	return &documentRepo{
		collection: db.Collection("documents"),
	}
}

func (r *documentRepo) Create(ctx context.Context, doc *model.Document) (string, error) {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	if doc.Status == "" {
		doc.Status = model.DocumentStatusProcessing
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", nil
	}
	return oid.Hex(), nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var doc model.Document
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.ID = id
	return &doc, nil
}

func (r *documentRepo) GetByIDOrName(ctx context.Context, ownerID, idOrName string) (*model.Document, error) {
	if oid, err := primitive.ObjectIDFromHex(idOrName); err == nil {
		var doc model.Document
		err = r.collection.FindOne(ctx, bson.M{"_id": oid, "ownerId": ownerID}).Decode(&doc)
		if err == nil {
			doc.ID = idOrName
			return &doc, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
	}

	var doc model.Document
	err := r.collection.FindOne(ctx, bson.M{"ownerId": ownerID, "name": idOrName}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) GetSearchable(ctx context.Context, ownerID string) ([]*model.Document, error) {
	filter := bson.M{
		"ownerId":          ownerID,
		"status":           model.DocumentStatusProcessed,
		"vectorCollection": bson.M{"$exists": true, "$ne": ""},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*model.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) Update(ctx context.Context, doc *model.Document) error {
	oid, err := primitive.ObjectIDFromHex(doc.ID)
	if err != nil {
		return err
	}

	doc.UpdatedAt = time.Now()
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	return err
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}
