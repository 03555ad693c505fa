package client

import (
	"context"
	"fmt"
	"strings"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// ModelJudge decides whether two queries ask for the same information.
type ModelJudge struct {
	model     repository.ChatModel
	modelName string
}

func NewModelJudge(model repository.ChatModel, modelName string) *ModelJudge {
	return &ModelJudge{model: model, modelName: modelName}
}

func (e *ModelJudge) IsMatch(ctx context.Context, userPrompt, cachedPrompt string) bool {
	// Structured for a deterministic YES/NO reply
	instruction := `You are a Semantic Intent Judge.
    Compare the following two user queries.
    Are they asking for the same information, even if phrased differently?
    - If they have the same intent, respond ONLY with "YES".
    - If there is a nuance difference or they ask for different things, respond ONLY with "NO".`

	prompt := fmt.Sprintf("Query 1: %s\nQuery 2: %s", userPrompt, cachedPrompt)

	resp, err := e.model.Complete(ctx, e.modelName, []entity.Message{
		entity.SystemMessage(instruction),
		entity.UserMessage(prompt),
	}, nil)
	if err != nil {
		return false // Default to safe 'No Match' on error
	}

	result := strings.TrimSpace(strings.ToUpper(resp.Content))
	return strings.HasPrefix(result, "YES")
}
