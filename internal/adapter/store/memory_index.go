package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// MemoryIndexer builds per-request in-memory vector indexes. Each index lives
// only as long as the request that built it.
type MemoryIndexer struct {
	embedder repository.Embedder
}

func NewMemoryIndexer(embedder repository.Embedder) *MemoryIndexer {
	return &MemoryIndexer{embedder: embedder}
}

func (m *MemoryIndexer) Build(ctx context.Context, chunks []string, metadata []map[string]any) (repository.VectorIndex, error) {
	vectors, err := m.embedder.CreateEmbeddings(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	idx := &memoryIndex{embedder: m.embedder, entries: make([]indexEntry, len(chunks))}
	for i, chunk := range chunks {
		var meta map[string]any
		if i < len(metadata) {
			meta = metadata[i]
		}
		idx.entries[i] = indexEntry{text: chunk, vector: vectors[i], metadata: meta}
	}
	return idx, nil
}

type indexEntry struct {
	text     string
	vector   []float32
	metadata map[string]any
}

type memoryIndex struct {
	embedder repository.Embedder
	entries  []indexEntry
}

// Query ranks entries by cosine similarity to text. Equal scores keep
// insertion order.
func (m *memoryIndex) Query(ctx context.Context, text string, k int) ([]entity.Passage, error) {
	query, err := m.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry indexEntry
		score float64
	}
	results := make([]scored, len(m.entries))
	for i, e := range m.entries {
		results[i] = scored{entry: e, score: cosineSimilarity(query, e.vector)}
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) > k {
		results = results[:k]
	}

	passages := make([]entity.Passage, len(results))
	for i, r := range results {
		title, _ := r.entry.metadata["title"].(string)
		link, _ := r.entry.metadata["link"].(string)
		passages[i] = entity.Passage{
			Text:     r.entry.text,
			Title:    title,
			Link:     link,
			Score:    r.score,
			Metadata: r.entry.metadata,
		}
	}
	return passages, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
