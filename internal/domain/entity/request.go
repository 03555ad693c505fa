package entity

import (
	"fmt"
	"strings"
)

type AnswerRequest struct {
	Message                   string `json:"message"`
	ReturnSources             bool   `json:"return_sources"`
	ReturnFollowUpQuestions   bool   `json:"return_follow_up_questions"`
	EmbedSourcesInLLMResponse bool   `json:"embed_sources_in_llm_response"`
	TextChunkSize             int    `json:"text_chunk_size"`
	TextChunkOverlap          int    `json:"text_chunk_overlap"`
	NumberOfSimilarityResults int    `json:"number_of_similarity_results"`
	NumberOfPagesToScan       int    `json:"number_of_pages_to_scan"`
	Stream                    bool   `json:"stream"`
}

// DefaultAnswerRequest returns the request every body is decoded on top of,
// so fields the caller omits keep these values.
func DefaultAnswerRequest() AnswerRequest {
	return AnswerRequest{
		ReturnSources:             true,
		ReturnFollowUpQuestions:   true,
		TextChunkSize:             1000,
		TextChunkOverlap:          200,
		NumberOfSimilarityResults: 2,
		NumberOfPagesToScan:       4,
	}
}

func (r AnswerRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if r.TextChunkSize < 100 {
		return fmt.Errorf("%w: text_chunk_size must be at least 100", ErrInvalidRequest)
	}
	if r.TextChunkOverlap < 0 {
		return fmt.Errorf("%w: text_chunk_overlap must not be negative", ErrInvalidRequest)
	}
	if r.TextChunkOverlap >= r.TextChunkSize {
		return fmt.Errorf("%w: text_chunk_overlap must be smaller than text_chunk_size", ErrInvalidRequest)
	}
	if r.NumberOfSimilarityResults < 1 {
		return fmt.Errorf("%w: number_of_similarity_results must be at least 1", ErrInvalidRequest)
	}
	if r.NumberOfPagesToScan < 1 {
		return fmt.Errorf("%w: number_of_pages_to_scan must be at least 1", ErrInvalidRequest)
	}
	return nil
}

// Chunking is the splitter configuration carried from the request into retrieval.
type Chunking struct {
	Size    int
	Overlap int
}

func (r AnswerRequest) Chunking() Chunking {
	return Chunking{Size: r.TextChunkSize, Overlap: r.TextChunkOverlap}
}
