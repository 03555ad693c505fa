package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/textsplitter"
)

var errNoChunks = errors.New("no non-empty chunks to index")

// Retriever turns a raw query into ranked context: rephrase, search, scrape,
// chunk and embed, then similarity search. Each stage is exported so the
// streaming path can report progress between them.
type Retriever struct {
	generator *Generator
	search    repository.SearchProvider
	scraper   repository.Scraper
	indexer   repository.VectorIndexer
	pool      *ants.Pool
	logger    *slog.Logger
}

// NewRetriever creates a retriever whose page fetches share a pool of
// workers goroutines. The pool never blocks a caller: fetches that find it
// full run on their own goroutine. A nil search provider yields no results.
func NewRetriever(gen *Generator, search repository.SearchProvider, scraper repository.Scraper, indexer repository.VectorIndexer, workers int) (*Retriever, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("creating scrape pool: %w", err)
	}
	return &Retriever{
		generator: gen,
		search:    search,
		scraper:   scraper,
		indexer:   indexer,
		pool:      pool,
		logger:    slog.Default().With("component", "retriever"),
	}, nil
}

// Release stops the scrape pool. The retriever must not be used afterwards.
func (r *Retriever) Release() {
	r.pool.Release()
}

// Retrieve runs every stage in order. A run where no page yields text ends
// with OutcomeNoSources and no context.
func (r *Retriever) Retrieve(ctx context.Context, rawQuery string, pageCount, k int, chunking entity.Chunking, cite bool) (*entity.Retrieval, error) {
	query := r.Rephrase(ctx, rawQuery)
	results := r.Search(ctx, query, pageCount)

	docs := r.Scrape(ctx, results)
	if len(docs) == 0 {
		return &entity.Retrieval{Outcome: entity.OutcomeNoSources, Query: query}, nil
	}

	index, err := r.Index(ctx, docs, chunking)
	if err != nil {
		return nil, err
	}
	passages, err := r.Rank(ctx, index, query, k)
	if err != nil {
		return nil, err
	}

	contextText, sources := BuildContext(passages, cite)
	return &entity.Retrieval{
		Outcome:  entity.OutcomeAnswered,
		Query:    query,
		Context:  contextText,
		Sources:  sources,
		Passages: passages,
	}, nil
}

// Rephrase falls back to the original query when the model fails.
func (r *Retriever) Rephrase(ctx context.Context, rawQuery string) string {
	rephrased, err := r.generator.Rephrase(ctx, rawQuery)
	if err != nil {
		r.logger.Error("rephrase failed, using original query", "err", err)
		return rawQuery
	}
	r.logger.Info("rephrased query", "query", rephrased)
	return rephrased
}

// Search returns at most pageCount results. Provider errors and a missing
// provider both yield no results.
func (r *Retriever) Search(ctx context.Context, query string, pageCount int) []entity.SearchResult {
	if r.search == nil {
		r.logger.Error("no search provider configured")
		return nil
	}
	results, err := r.search.Search(ctx, query, pageCount)
	if err != nil {
		r.logger.Error("search failed", "err", err)
		return nil
	}
	if len(results) > pageCount {
		results = results[:pageCount]
	}
	r.logger.Info("search complete", "results", len(results))
	return results
}

// Scrape fetches every result concurrently. Failed or empty pages are dropped
// without affecting the others; the survivors keep search order. Nothing new
// is fetched once ctx is done.
func (r *Retriever) Scrape(ctx context.Context, results []entity.SearchResult) []entity.Document {
	slots := make([]*entity.Document, len(results))
	var wg sync.WaitGroup
	for i, res := range results {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			text, err := r.scraper.FetchAndExtract(ctx, res.URL)
			if err != nil {
				r.logger.Error("failed to scrape page", "url", res.URL, "err", err)
				return
			}
			text = strings.TrimSpace(text)
			if text == "" {
				r.logger.Warn("page had no text", "url", res.URL)
				return
			}
			slots[i] = &entity.Document{Title: res.Title, Link: res.URL, Text: text}
		}
		if err := r.pool.Submit(task); err != nil {
			if !errors.Is(err, ants.ErrPoolOverload) {
				r.logger.Error("failed to schedule scrape", "url", res.URL, "err", err)
				wg.Done()
				continue
			}
			// Other requests hold every worker; do not queue behind them.
			r.logger.Debug("scrape pool saturated, fetching outside the pool", "url", res.URL)
			go task()
		}
	}
	wg.Wait()

	docs := make([]entity.Document, 0, len(slots))
	for _, d := range slots {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	r.logger.Info("scrape complete", "pages", len(results), "documents", len(docs))
	return docs
}

// Index splits documents into overlapping chunks, drops chunks that are blank
// after trimming, and embeds the rest into a fresh index.
func (r *Retriever) Index(ctx context.Context, docs []entity.Document, chunking entity.Chunking) (repository.VectorIndex, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunking.Size),
		textsplitter.WithChunkOverlap(chunking.Overlap),
	)

	var chunks []string
	var metadata []map[string]any
	for _, doc := range docs {
		parts, err := splitter.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", doc.Link, err)
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, part)
			metadata = append(metadata, map[string]any{"title": doc.Title, "link": doc.Link})
		}
	}
	if len(chunks) == 0 {
		return nil, errNoChunks
	}

	index, err := r.indexer.Build(ctx, chunks, metadata)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	r.logger.Info("indexed chunks", "documents", len(docs), "chunks", len(chunks))
	return index, nil
}

// Rank returns the k chunks closest to query, best first.
func (r *Retriever) Rank(ctx context.Context, index repository.VectorIndex, query string, k int) ([]entity.Passage, error) {
	passages, err := index.Query(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	r.logger.Info("similarity search complete", "passages", len(passages))
	return passages, nil
}

// BuildContext joins passage texts with blank lines in rank order and lists
// the passages that carry a link as sources, in the same order. With cite
// each passage is headed by its number, title and link.
func BuildContext(passages []entity.Passage, cite bool) (string, []entity.Source) {
	parts := make([]string, 0, len(passages))
	var sources []entity.Source
	for i, p := range passages {
		if cite {
			parts = append(parts, fmt.Sprintf("[%d] %s (%s)\n%s", i+1, p.Title, p.Link, p.Text))
		} else {
			parts = append(parts, p.Text)
		}
		if p.Link != "" {
			sources = append(sources, entity.Source{Title: p.Title, Link: p.Link})
		}
	}
	return strings.Join(parts, "\n\n"), sources
}
