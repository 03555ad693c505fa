package client

import (
	"context"
	"errors"

	"answer-engine/internal/domain/entity"

	"google.golang.org/genai"
)

// GeminiModel implements repository.ChatModel on the Gemini API or Vertex AI.
type GeminiModel struct {
	client *genai.Client
}

// NewGeminiClient uses Vertex AI when projectID is set and the Gemini API
// with apiKey otherwise.
func NewGeminiClient(ctx context.Context, projectID, location, apiKey string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if projectID != "" {
		cfg = &genai.ClientConfig{
			Project:  projectID,
			Location: location,
			Backend:  genai.BackendVertexAI,
		}
	}
	return genai.NewClient(ctx, cfg)
}

func NewGeminiModelFromClient(c *genai.Client) *GeminiModel {
	return &GeminiModel{client: c}
}

func (g *GeminiModel) Complete(ctx context.Context, model string, messages []entity.Message, tools []entity.ToolSpec) (*entity.Completion, error) {
	contents, config := toGenaiRequest(messages, tools)
	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	completion := &entity.Completion{Content: result.Text(), Model: model}
	if result.UsageMetadata != nil {
		completion.TokenCount = int(result.UsageMetadata.TotalTokenCount)
	}
	for _, fc := range result.FunctionCalls() {
		completion.ToolCalls = append(completion.ToolCalls, entity.ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: fc.Args,
		})
	}
	return completion, nil
}

func (g *GeminiModel) Stream(ctx context.Context, model string, messages []entity.Message, onToken func(string) error) error {
	contents, config := toGenaiRequest(messages, nil)
	for chunk, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return err
		}
		if text := chunk.Text(); text != "" {
			if err := onToken(text); err != nil {
				return err
			}
		}
	}
	return nil
}

// toGenaiRequest moves system messages into the system instruction and maps
// assistant turns to the model role.
func toGenaiRequest(messages []entity.Message, tools []entity.ToolSpec) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case entity.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case entity.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return contents, config
}

func toGenaiSchema(t entity.ToolSpec) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(t.Params)),
	}
	for _, p := range t.Params {
		schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}
