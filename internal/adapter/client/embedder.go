package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiEmbedBatch = 100

type GeminiEmbedder struct {
	client *genai.Client
	model  string // e.g., "text-embedding-004"
}

func NewGeminiEmbedderFromClient(c *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{
		client: c,
		model:  model,
	}
}

func (e *GeminiEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, errors.New("gemini returned no embedding")
	}
	return res.Embeddings[0].Values, nil
}

// CreateEmbeddings embeds texts in batches, keeping input order.
func (e *GeminiEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatch {
		end := min(start+geminiEmbedBatch, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}
		res, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, err
		}
		if len(res.Embeddings) != len(contents) {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(contents))
		}
		for _, emb := range res.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}
