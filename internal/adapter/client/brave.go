package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"answer-engine/internal/domain/entity"
)

const braveBaseURL = "https://api.search.brave.com"

// BraveClient uses the Brave Search API. An API key is required via X-Subscription-Token.
type BraveClient struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewBraveClient(apiKey string) *BraveClient {
	return &BraveClient{APIKey: apiKey, BaseURL: braveBaseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// NewBraveClientWithClient uses the supplied HTTP client and base URL.
func NewBraveClientWithClient(apiKey, baseURL string, client *http.Client) *BraveClient {
	return &BraveClient{APIKey: apiKey, BaseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (b *BraveClient) Search(ctx context.Context, query string, maxResults int) ([]entity.SearchResult, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	endpoint := fmt.Sprintf("%s/res/v1/web/search?q=%s&count=%d", b.BaseURL, url.QueryEscape(query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title string `json:"title"`
				URL   string `json:"url"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	results := make([]entity.SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, entity.SearchResult{Title: r.Title, URL: r.URL})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}
