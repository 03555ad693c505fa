package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

const (
	answerInstruction   = "You are an intelligent assistant. Answer the user's question using only the provided context. If the context does not contain the answer, say so."
	citeInstruction     = " The context is split into numbered sources. Cite the sources you use with their number in square brackets, e.g. [1]."
	rephraseInstruction = "You are an assistant skilled at rephrasing queries for better search results. ONLY RETURN THE REPHRASED VERSION OF THE INPUT."
	followUpInstruction = "Generate 3 short, relevant follow-up questions for the given query. Return one question per line and nothing else."
	summaryInstruction  = "You are an intelligent assistant. Given the following tool outputs, summarize them into a clean, readable paragraph."
)

type GeneratorConfig struct {
	AnswerModel        string
	RephraseModel      string
	FollowUpModel      string
	UseFunctionCalling bool
}

// Generator turns retrieved context into answer text, calling tools when the
// model asks for them.
type Generator struct {
	model  repository.ChatModel
	tools  *ToolRunner
	cfg    GeneratorConfig
	logger *slog.Logger
}

func NewGenerator(model repository.ChatModel, tools *ToolRunner, cfg GeneratorConfig) *Generator {
	if tools == nil {
		tools = NewToolRunner()
	}
	return &Generator{
		model:  model,
		tools:  tools,
		cfg:    cfg,
		logger: slog.Default().With("component", "generator"),
	}
}

// ToolsEnabled reports whether the model may be offered tools at all.
func (g *Generator) ToolsEnabled() bool {
	return g.cfg.UseFunctionCalling && len(g.tools.Specs()) > 0
}

// Prompt is the grounding context and question for one answer. With Cite set
// the context is expected to carry numbered source headers.
type Prompt struct {
	Context  string
	Question string
	Cite     bool
}

func (p Prompt) Messages() []entity.Message {
	instruction := answerInstruction
	if p.Cite {
		instruction += citeInstruction
	}
	return []entity.Message{
		entity.SystemMessage(instruction),
		entity.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", p.Context, p.Question)),
	}
}

// Answer generates the answer text. When the model requests tool calls the
// calls are dispatched and a second completion summarizes their outputs.
func (g *Generator) Answer(ctx context.Context, prompt Prompt, enableTools bool) (string, []entity.ToolInvocation, error) {
	messages := prompt.Messages()
	var tools []entity.ToolSpec
	if enableTools && g.ToolsEnabled() {
		tools = g.tools.Specs()
	}
	g.logger.Info("requesting answer", "model", g.cfg.AnswerModel, "tools", len(tools))

	completion, err := g.model.Complete(ctx, g.cfg.AnswerModel, messages, tools)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", entity.ErrGenerationFailure, err)
	}
	if len(completion.ToolCalls) == 0 {
		return completion.Content, []entity.ToolInvocation{}, nil
	}

	g.logger.Info("function calls detected", "count", len(completion.ToolCalls))
	invocations := g.tools.DispatchAll(ctx, completion.ToolCalls)

	summary, err := g.summarize(ctx, invocations)
	if err != nil {
		return "", nil, err
	}
	return summary, invocations, nil
}

// RunTools issues a non-streamed completion over the prompt with tools offered
// and dispatches whatever calls come back.
func (g *Generator) RunTools(ctx context.Context, prompt Prompt) ([]entity.ToolInvocation, error) {
	if !g.ToolsEnabled() {
		return nil, nil
	}
	completion, err := g.model.Complete(ctx, g.cfg.AnswerModel, prompt.Messages(), g.tools.Specs())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrGenerationFailure, err)
	}
	if len(completion.ToolCalls) == 0 {
		return nil, nil
	}
	return g.tools.DispatchAll(ctx, completion.ToolCalls), nil
}

// StreamAnswer streams answer tokens for the prompt to onToken.
func (g *Generator) StreamAnswer(ctx context.Context, prompt Prompt, onToken func(string) error) error {
	g.logger.Info("streaming answer", "model", g.cfg.AnswerModel)
	if err := g.model.Stream(ctx, g.cfg.AnswerModel, prompt.Messages(), onToken); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrGenerationFailure, err)
	}
	return nil
}

func (g *Generator) summarize(ctx context.Context, invocations []entity.ToolInvocation) (string, error) {
	lines := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		lines = append(lines, fmt.Sprintf("- %v", inv.Response))
	}
	messages := []entity.Message{
		entity.SystemMessage(summaryInstruction),
		entity.UserMessage(strings.Join(lines, "\n")),
	}
	completion, err := g.model.Complete(ctx, g.cfg.AnswerModel, messages, nil)
	if err != nil {
		return "", fmt.Errorf("%w: summarizing tool outputs: %w", entity.ErrGenerationFailure, err)
	}
	return completion.Content, nil
}

// Rephrase rewrites text for search. Errors are returned to the caller, which
// decides on the fallback.
func (g *Generator) Rephrase(ctx context.Context, text string) (string, error) {
	completion, err := g.model.Complete(ctx, g.cfg.RephraseModel, []entity.Message{
		entity.SystemMessage(rephraseInstruction),
		entity.UserMessage("Rephrase this query to make it more precise for search engines: " + text),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrGenerationFailure, err)
	}
	rephrased := strings.TrimSpace(completion.Content)
	if rephrased == "" {
		return text, nil
	}
	return rephrased, nil
}

func (g *Generator) FollowUpQuestions(ctx context.Context, question string) ([]string, error) {
	completion, err := g.model.Complete(ctx, g.cfg.FollowUpModel, []entity.Message{
		entity.SystemMessage(followUpInstruction),
		entity.UserMessage(question),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrGenerationFailure, err)
	}
	return splitLines(completion.Content), nil
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
