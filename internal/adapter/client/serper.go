package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"answer-engine/internal/domain/entity"
)

const serperBaseURL = "https://google.serper.dev"

// SerperClient talks to the Serper Google APIs. It is both a search provider
// and the backend of the shopping and news tools.
type SerperClient struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewSerperClient(apiKey string) *SerperClient {
	return &SerperClient{APIKey: apiKey, BaseURL: serperBaseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// NewSerperClientWithClient uses the supplied HTTP client and base URL.
func NewSerperClientWithClient(apiKey, baseURL string, client *http.Client) *SerperClient {
	return &SerperClient{APIKey: apiKey, BaseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

type ShoppingItem struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Link     string `json:"link"`
	ImageURL string `json:"imageUrl"`
}

type NewsArticle struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Date    string `json:"date"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (s *SerperClient) Search(ctx context.Context, query string, maxResults int) ([]entity.SearchResult, error) {
	var payload struct {
		Organic []struct {
			Title string `json:"title"`
			Link  string `json:"link"`
		} `json:"organic"`
	}
	if err := s.post(ctx, "/search", query, &payload); err != nil {
		return nil, err
	}

	results := make([]entity.SearchResult, 0, len(payload.Organic))
	for _, item := range payload.Organic {
		if item.Link == "" {
			continue
		}
		results = append(results, entity.SearchResult{Title: item.Title, URL: item.Link})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

func (s *SerperClient) Shopping(ctx context.Context, query string) ([]ShoppingItem, error) {
	var payload struct {
		Shopping []ShoppingItem `json:"shopping"`
	}
	if err := s.post(ctx, "/shopping", query, &payload); err != nil {
		return nil, err
	}
	return payload.Shopping, nil
}

func (s *SerperClient) News(ctx context.Context, query string) ([]NewsArticle, error) {
	var payload struct {
		News []NewsArticle `json:"news"`
	}
	if err := s.post(ctx, "/news", query, &payload); err != nil {
		return nil, err
	}
	return payload.News, nil
}

func (s *SerperClient) post(ctx context.Context, path, query string, out any) error {
	if strings.TrimSpace(s.APIKey) == "" {
		return errors.New("serper: API key is missing")
	}
	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("serper http %d: %s", resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
