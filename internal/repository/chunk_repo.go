package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// ChunkRepo handles MongoDB operations for embedded text chunks
type ChunkRepo interface {
	// ByCollection returns every chunk stored under a document's vector
	// collection, in chunk order.
	ByCollection(ctx context.Context, collection string) ([]*model.Chunk, error)
	InsertMany(ctx context.Context, chunks []*model.Chunk) error
	DeleteByCollection(ctx context.Context, collection string) error
}

type chunkRepo struct {
	collection *mongo.Collection
}

// NewChunkRepo creates a new chunk repository
func NewChunkRepo(db *mongo.Database) ChunkRepo {
	return &chunkRepo{
		collection: db.Collection("chunks"),
	}
}

func (r *chunkRepo) ByCollection(ctx context.Context, collection string) ([]*model.Chunk, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"collection": collection})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []*model.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *chunkRepo) InsertMany(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		docs[i] = c
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *chunkRepo) DeleteByCollection(ctx context.Context, collection string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"collection": collection})
	return err
}
