package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

var errBoom = errors.New("boom")

// memoryKV is a map-backed CounterStore and KVStore that ignores TTLs.
type memoryKV struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
	getErr   error
	setErr   error
	incrErr  error
	sets     int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string][]byte{}, counters: map[string]int64{}}
}

func (m *memoryKV) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryKV) SetEx(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.values[key] = value
	return nil
}

func (m *memoryKV) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

type modelCall struct {
	Model    string
	Messages []entity.Message
	Tools    []entity.ToolSpec
}

// scriptedModel answers by model name. Calls that offer tools get toolCalls
// back when any are scripted.
type scriptedModel struct {
	mu        sync.Mutex
	replies   map[string]string
	errs      map[string]error
	toolCalls []entity.ToolCall
	tokens    []string
	streamErr error
	delay     time.Duration // applied to every Complete, regardless of ctx
	calls     []modelCall
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		replies: map[string]string{
			"rephrase": "rephrased query",
			"answer":   "the answer",
			"followup": "Q1?\nQ2?\n\nQ3?",
		},
		errs: map[string]error{},
	}
}

func (s *scriptedModel) Complete(_ context.Context, model string, messages []entity.Message, tools []entity.ToolSpec) (*entity.Completion, error) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	time.Sleep(delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, modelCall{Model: model, Messages: messages, Tools: tools})
	if err := s.errs[model]; err != nil {
		return nil, err
	}
	if len(tools) > 0 && len(s.toolCalls) > 0 {
		return &entity.Completion{ToolCalls: s.toolCalls, Model: model}, nil
	}
	if len(messages) > 0 && messages[0].Content == summaryInstruction {
		return &entity.Completion{Content: "summary of " + messages[1].Content, Model: model}, nil
	}
	return &entity.Completion{Content: s.replies[model], Model: model}, nil
}

func (s *scriptedModel) Stream(ctx context.Context, model string, messages []entity.Message, onToken func(string) error) error {
	s.mu.Lock()
	s.calls = append(s.calls, modelCall{Model: model, Messages: messages})
	tokens, streamErr := s.tokens, s.streamErr
	s.mu.Unlock()
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return streamErr
}

func (s *scriptedModel) callsTo(model string) []modelCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modelCall
	for _, c := range s.calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

type staticSearch struct {
	mu      sync.Mutex
	results []entity.SearchResult
	err     error
	queries []string
}

func (s *staticSearch) Search(_ context.Context, query string, maxResults int) ([]entity.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > maxResults {
		return s.results[:maxResults], nil
	}
	return s.results, nil
}

// mapScraper serves page text by URL; unknown URLs fail.
type mapScraper struct {
	mu    sync.Mutex
	pages map[string]string
	hits  int
}

func (m *mapScraper) FetchAndExtract(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	text, ok := m.pages[url]
	if !ok {
		return "", entity.ErrFetchFailure
	}
	return text, nil
}

func (s *staticSearch) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// gatedScraper holds fetches of blocked URLs until release is closed or the
// fetch's context ends. Other URLs return at once.
type gatedScraper struct {
	blocked map[string]bool
	release chan struct{}
	started chan string
}

func (g *gatedScraper) FetchAndExtract(ctx context.Context, url string) (string, error) {
	if g.blocked[url] {
		g.started <- url
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "text of " + url, nil
}

// orderIndexer ranks chunks that contain the query's first word ahead of the
// rest, otherwise keeping insertion order.
type orderIndexer struct {
	chunks   []string
	metadata []map[string]any
	err      error
}

func (o *orderIndexer) Build(_ context.Context, chunks []string, metadata []map[string]any) (repository.VectorIndex, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.chunks, o.metadata = chunks, metadata
	return o, nil
}

func (o *orderIndexer) Query(_ context.Context, text string, k int) ([]entity.Passage, error) {
	word := strings.ToLower(strings.Fields(text + " x")[0])
	var first, rest []entity.Passage
	for i, c := range o.chunks {
		title, _ := o.metadata[i]["title"].(string)
		link, _ := o.metadata[i]["link"].(string)
		p := entity.Passage{Text: c, Title: title, Link: link, Metadata: o.metadata[i]}
		if strings.Contains(strings.ToLower(c), word) {
			first = append(first, p)
		} else {
			rest = append(rest, p)
		}
	}
	all := append(first, rest...)
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

type pipelineFixture struct {
	kv        *memoryKV
	model     *scriptedModel
	search    *staticSearch
	scraper   *mapScraper
	indexer   *orderIndexer
	tools     *ToolRunner
	limiter   *RateLimiter
	cache     *AnswerCache
	generator *Generator
	retriever *Retriever
}

func newPipelineFixture(tools ...repository.Tool) *pipelineFixture {
	f := &pipelineFixture{
		kv:    newMemoryKV(),
		model: newScriptedModel(),
		search: &staticSearch{results: []entity.SearchResult{
			{Title: "Page A", URL: "https://a.example"},
			{Title: "Page B", URL: "https://b.example"},
		}},
		scraper: &mapScraper{pages: map[string]string{
			"https://a.example": "Alpha facts about the rephrased topic.",
			"https://b.example": "Beta details that matter less.",
		}},
		indexer: &orderIndexer{},
		tools:   NewToolRunner(tools...),
	}
	f.limiter = NewRateLimiter(f.kv, 30)
	f.cache = NewAnswerCache(f.kv)
	f.generator = NewGenerator(f.model, f.tools, GeneratorConfig{
		AnswerModel:        "answer",
		RephraseModel:      "rephrase",
		FollowUpModel:      "followup",
		UseFunctionCalling: true,
	})
	r, err := NewRetriever(f.generator, f.search, f.scraper, f.indexer, 2)
	if err != nil {
		panic(err)
	}
	f.retriever = r
	return f
}

func echoTool(name string) repository.Tool {
	return repository.Tool{
		Spec: entity.ToolSpec{Name: name, Description: "echoes its query"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"echo": args["query"]}, nil
		},
	}
}
