package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"answer-engine/internal/domain/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswers struct {
	result  *entity.AnswerResult
	outcome entity.Outcome
	got     *entity.AnswerRequest
}

func (s *stubAnswers) Execute(_ context.Context, _ string, req entity.AnswerRequest) (*entity.AnswerResult, entity.Outcome) {
	s.got = &req
	return s.result, s.outcome
}

type stubStream []entity.Event

func (s stubStream) Run(ctx context.Context, _ string, _ entity.AnswerRequest) <-chan entity.Event {
	out := make(chan entity.Event)
	go func() {
		defer close(out)
		for _, ev := range s {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newTestApp(answers AnswerService, stream StreamService) *fiber.App {
	app := fiber.New()
	SetupRouter(app, NewAnswerHandler(answers, stream))
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestEncodeEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   entity.Event
		want string
	}{
		{"token", entity.TokenEvent("Hello"), "Hello"},
		{"terminal", entity.TerminalEvent(entity.NoSourcesMessage), entity.NoSourcesMessage},
		{"progress", entity.ProgressEvent("Searching the web..."), "###ACTIVITY### Searching the web...\n"},
		{
			"tool output",
			entity.ToolOutputEvent([]entity.ToolInvocation{{FunctionName: "get_stock_info", Arguments: map[string]any{"symbol": "AAPL"}, Response: "ok"}}),
			"\n###TOOL_OUTPUT###\n" + `[{"function_name":"get_stock_info","arguments":{"symbol":"AAPL"},"response":"ok"}]`,
		},
		{"empty tool output", entity.ToolOutputEvent(nil), "\n###TOOL_OUTPUT###\n[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeEvent(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleAnswer_DecodesOntoDefaults(t *testing.T) {
	answers := &stubAnswers{result: &entity.AnswerResult{Answer: "hi", ToolOutputs: []entity.ToolInvocation{}}, outcome: entity.OutcomeAnswered}
	app := newTestApp(answers, stubStream{})

	resp := post(t, app, "/answer", `{"message":"What is Go?","number_of_pages_to_scan":2}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "false", resp.Header.Get("X-Cache-Hit"))

	require.NotNil(t, answers.got)
	assert.Equal(t, "What is Go?", answers.got.Message)
	assert.Equal(t, 2, answers.got.NumberOfPagesToScan)
	assert.Equal(t, 1000, answers.got.TextChunkSize)
	assert.True(t, answers.got.ReturnSources)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "hi", body["answer"])
	assert.Equal(t, []any{}, body["tool_outputs"])
	assert.NotContains(t, body, "sources")
}

func TestHandleAnswer_StatusByOutcome(t *testing.T) {
	tests := []struct {
		outcome entity.Outcome
		status  int
		cached  string
	}{
		{entity.OutcomeCached, http.StatusOK, "true"},
		{entity.OutcomeNoSources, http.StatusOK, "false"},
		{entity.OutcomeFailed, http.StatusOK, "false"},
		{entity.OutcomeQuotaExceeded, http.StatusTooManyRequests, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			answers := &stubAnswers{result: entity.MessageResult("x"), outcome: tt.outcome}
			resp := post(t, newTestApp(answers, stubStream{}), "/v1/answer", `{"message":"q"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.cached, resp.Header.Get("X-Cache-Hit"))
		})
	}
}

func TestHandleAnswer_BadRequests(t *testing.T) {
	answers := &stubAnswers{}
	app := newTestApp(answers, stubStream{})

	for _, body := range []string{`{"message":""}`, `{"message":"q","text_chunk_size":10}`, `{not json`} {
		resp := post(t, app, "/answer", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Nil(t, answers.got)
}

func TestHandleAnswer_Stream(t *testing.T) {
	events := stubStream{
		entity.ProgressEvent("Searching the web..."),
		entity.TokenEvent("Hel"),
		entity.TokenEvent("lo"),
		entity.ToolOutputEvent([]entity.ToolInvocation{{FunctionName: "f", Response: "r"}}),
	}
	answers := &stubAnswers{}
	app := newTestApp(answers, events)

	resp := post(t, app, "/answer", `{"message":"q","stream":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t,
		"###ACTIVITY### Searching the web...\nHello\n###TOOL_OUTPUT###\n"+`[{"function_name":"f","arguments":null,"response":"r"}]`,
		string(raw))
	assert.Nil(t, answers.got, "streaming requests bypass the non-stream pipeline")
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubAnswers{}, stubStream{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
