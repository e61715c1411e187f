package model

import "time"

// DocumentStatus is the ingestion state of a knowledge base document.
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is a knowledge base document. Ingestion (chunking, embedding
// generation) happens outside the core; the retriever only consumes
// processed documents that carry a vector collection reference.
type Document struct {
	ID               string         `json:"id" bson:"_id,omitempty"`
	OwnerID          string         `json:"ownerId" bson:"ownerId"`
	Name             string         `json:"name" bson:"name"`
	Description      string         `json:"description,omitempty" bson:"description,omitempty"`
	Status           DocumentStatus `json:"status" bson:"status"`
	Tags             []string       `json:"tags,omitempty" bson:"tags,omitempty"`
	VectorCollection string         `json:"vectorCollection,omitempty" bson:"vectorCollection,omitempty"`
	EmbeddingsCount  int            `json:"embeddingsCount,omitempty" bson:"embeddingsCount,omitempty"`
	CreatedAt        time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Chunk is one embedded text chunk inside a document's vector collection.
type Chunk struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	Collection string    `json:"collection" bson:"collection"`
	DocumentID string    `json:"documentId" bson:"documentId"`
	Index      int       `json:"index" bson:"index"`
	Content    string    `json:"content" bson:"content"`
	Embedding  []float32 `json:"-" bson:"embedding"`
}

// SearchHit is one vector search result, tagged with its source document.
type SearchHit struct {
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
	DocumentID     string  `json:"documentId"`
	DocumentName   string  `json:"documentName"`
	RelevanceScore float64 `json:"relevanceScore"`
	Compressed     bool    `json:"compressed,omitempty"`
}
