package vector

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

// Index performs similarity search over a document's embedded chunks.
type Index struct {
	chunks   repository.ChunkRepo
	embedder llm.Embedder
}

func NewIndex(chunks repository.ChunkRepo, embedder llm.Embedder) *Index {
	return &Index{
		chunks:   chunks,
		embedder: embedder,
	}
}

type scoredChunk struct {
	chunk      *model.Chunk
	similarity float32
}

// Search embeds the query and returns the top k most similar chunks stored
// under the given vector collection.
func (x *Index) Search(ctx context.Context, collection, query string, k int) ([]model.SearchHit, error) {
	chunks, err := x.chunks.ByCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for %s: %w", collection, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryEmbedding, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]scoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		similarity, err := CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			log.Printf("Skipping chunk %s: %v", chunk.ID, err)
			continue
		}
		scored = append(scored, scoredChunk{chunk: chunk, similarity: similarity})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}

	hits := make([]model.SearchHit, len(scored))
	for i, s := range scored {
		hits[i] = model.SearchHit{
			Content:    s.chunk.Content,
			Score:      float64(s.similarity),
			DocumentID: s.chunk.DocumentID,
		}
	}
	return hits, nil
}
