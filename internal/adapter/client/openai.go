package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"answer-engine/internal/domain/entity"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Base URLs of the OpenAI-compatible backends.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
)

// OpenAIModel implements repository.ChatModel on any OpenAI-compatible API
// (OpenAI, Groq, Ollama).
type OpenAIModel struct {
	llm    *openai.LLM
	logger *slog.Logger
}

// NewOpenAIModel connects to baseURL. Local servers that need no key can be
// given any token, e.g. "none".
func NewOpenAIModel(baseURL, token string) (*OpenAIModel, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
	)
	if err != nil {
		return nil, err
	}
	return &OpenAIModel{
		llm:    llm,
		logger: slog.Default().With("component", "openai-model"),
	}, nil
}

func (o *OpenAIModel) Complete(ctx context.Context, model string, messages []entity.Message, tools []entity.ToolSpec) (*entity.Completion, error) {
	opts := []llms.CallOption{llms.WithModel(model)}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(toLLMTools(tools)), llms.WithToolChoice("auto"))
	}

	resp, err := o.llm.GenerateContent(ctx, toLLMMessages(messages), opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	completion := &entity.Completion{Content: choice.Content, Model: model}
	if tokens, ok := choice.GenerationInfo["TotalTokens"].(int); ok {
		completion.TokenCount = tokens
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
			o.logger.Warn("undecodable tool arguments", "name", tc.FunctionCall.Name, "err", err)
			args = nil
		}
		completion.ToolCalls = append(completion.ToolCalls, entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}
	return completion, nil
}

func (o *OpenAIModel) Stream(ctx context.Context, model string, messages []entity.Message, onToken func(string) error) error {
	_, err := o.llm.GenerateContent(ctx, toLLMMessages(messages),
		llms.WithModel(model),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onToken(string(chunk))
		}),
	)
	return err
}

func toLLMMessages(messages []entity.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case entity.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case entity.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func toLLMTools(specs []entity.ToolSpec) []llms.Tool {
	tools := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		})
	}
	return tools
}

// OpenAIEmbedder implements repository.Embedder on an OpenAI-compatible API.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
}

func NewOpenAIEmbedder(baseURL, token, model string) (*OpenAIEmbedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{embedder: embedder}, nil
}

func (e *OpenAIEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

func (e *OpenAIEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedder.EmbedDocuments(ctx, texts)
}
