package usecase

import (
	"context"
	"testing"
	"time"

	"answer-engine/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(f *pipelineFixture) *Orchestrator {
	return NewOrchestrator(f.limiter, f.cache, nil, f.retriever, f.generator, time.Hour)
}

func TestOrchestrator_Answered(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)
	orch := newTestOrchestrator(f)

	req := entity.DefaultAnswerRequest()
	req.Message = "What is alpha?"
	result, outcome := orch.Execute(context.Background(), "client", req)

	assert.Equal(t, entity.OutcomeAnswered, outcome)
	assert.Equal(t, "the answer", result.Answer)
	assert.Len(t, result.Sources, 2)
	assert.Equal(t, []string{"Q1?", "Q2?", "Q3?"}, result.FollowUpQuestions)
	assert.NotNil(t, result.ToolOutputs)

	// Follow-ups are asked about the rephrased query.
	followUps := f.model.callsTo("followup")
	require.Len(t, followUps, 1)
	assert.Equal(t, "rephrased query", followUps[0].Messages[1].Content)

	_, cached := f.cache.Get(context.Background(), "What is alpha?")
	assert.True(t, cached)
}

func TestOrchestrator_OptionalFields(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)

	req := entity.DefaultAnswerRequest()
	req.Message = "q"
	req.ReturnSources = false
	req.ReturnFollowUpQuestions = false
	result, outcome := newTestOrchestrator(f).Execute(context.Background(), "client", req)

	assert.Equal(t, entity.OutcomeAnswered, outcome)
	assert.Nil(t, result.Sources)
	assert.Nil(t, result.FollowUpQuestions)
	assert.Empty(t, f.model.callsTo("followup"))
}

func TestOrchestrator_IdempotentWithinTTL(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)
	orch := newTestOrchestrator(f)

	req := entity.DefaultAnswerRequest()
	req.Message = "same question"
	first, outcome := orch.Execute(context.Background(), "client", req)
	require.Equal(t, entity.OutcomeAnswered, outcome)
	searches := len(f.search.queries)

	second, outcome := orch.Execute(context.Background(), "client", req)
	assert.Equal(t, entity.OutcomeCached, outcome)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, first.FollowUpQuestions, second.FollowUpQuestions)
	assert.Len(t, f.search.queries, searches, "cache hit must not search again")
}

func TestOrchestrator_QuotaShortCircuit(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)
	f.limiter = NewRateLimiter(f.kv, 1)
	orch := newTestOrchestrator(f)

	req := entity.DefaultAnswerRequest()
	req.Message = "q"
	_, outcome := orch.Execute(context.Background(), "client", req)
	require.Equal(t, entity.OutcomeAnswered, outcome)
	calls := len(f.model.calls)

	req.Message = "another"
	result, outcome := orch.Execute(context.Background(), "client", req)
	assert.Equal(t, entity.OutcomeQuotaExceeded, outcome)
	assert.Equal(t, entity.QuotaExceededMessage, result.Answer)
	assert.Len(t, f.model.calls, calls, "rejected request must not reach the model")
	assert.Len(t, f.search.queries, 1)
}

func TestOrchestrator_NoSourcesShortCircuit(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)
	f.scraper.pages = map[string]string{}

	req := entity.DefaultAnswerRequest()
	req.Message = "q"
	result, outcome := newTestOrchestrator(f).Execute(context.Background(), "client", req)

	assert.Equal(t, entity.OutcomeNoSources, outcome)
	assert.Equal(t, entity.NoSourcesMessage, result.Answer)
	assert.Empty(t, result.ToolOutputs)
	assert.Empty(t, f.model.callsTo("answer"))
	assert.Zero(t, f.kv.setCount(), "no-sources answers are not cached")
}

func TestOrchestrator_GenerationFailure(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)
	f.model.errs["answer"] = errBoom

	req := entity.DefaultAnswerRequest()
	req.Message = "q"
	result, outcome := newTestOrchestrator(f).Execute(context.Background(), "client", req)

	assert.Equal(t, entity.OutcomeFailed, outcome)
	assert.Equal(t, entity.InternalErrorMessage, result.Answer)
	assert.NotContains(t, result.Answer, "boom")
	assert.Zero(t, f.kv.setCount())
}

func TestOrchestrator_FollowUpFailureKeepsAnswer(t *testing.T) {
	f := newPipelineFixture()
	t.Cleanup(f.retriever.Release)
	f.model.errs["followup"] = errBoom

	req := entity.DefaultAnswerRequest()
	req.Message = "q"
	result, outcome := newTestOrchestrator(f).Execute(context.Background(), "client", req)

	assert.Equal(t, entity.OutcomeAnswered, outcome)
	assert.Equal(t, "the answer", result.Answer)
	assert.Nil(t, result.FollowUpQuestions)
}

func TestOrchestrator_ToolOutputs(t *testing.T) {
	f := newPipelineFixture(echoTool("echo"))
	t.Cleanup(f.retriever.Release)
	f.model.toolCalls = []entity.ToolCall{{Name: "echo", Arguments: map[string]any{"query": "x"}}}

	req := entity.DefaultAnswerRequest()
	req.Message = "q"
	result, outcome := newTestOrchestrator(f).Execute(context.Background(), "client", req)

	assert.Equal(t, entity.OutcomeAnswered, outcome)
	require.Len(t, result.ToolOutputs, 1)
	assert.Equal(t, "echo", result.ToolOutputs[0].FunctionName)
	assert.Contains(t, result.Answer, "summary of")
}
