package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"answer-engine/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerperClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "golang", body["q"])

		_, _ = w.Write([]byte(`{"organic":[
			{"title":"Go","link":"https://go.dev"},
			{"title":"No link"},
			{"title":"Tour","link":"https://go.dev/tour"},
			{"title":"Blog","link":"https://go.dev/blog"}
		]}`))
	}))
	defer srv.Close()

	c := NewSerperClientWithClient("secret", srv.URL, srv.Client())
	results, err := c.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	assert.Equal(t, []entity.SearchResult{
		{Title: "Go", URL: "https://go.dev"},
		{Title: "Tour", URL: "https://go.dev/tour"},
	}, results)
}

func TestSerperClient_ShoppingAndNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shopping":
			_, _ = w.Write([]byte(`{"shopping":[{"title":"Phone","price":"$999","link":"https://shop.example","imageUrl":"https://img.example"}]}`))
		case "/news":
			_, _ = w.Write([]byte(`{"news":[{"title":"Headline","source":"Wire","date":"1h ago","link":"https://news.example","snippet":"..."}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewSerperClientWithClient("k", srv.URL, srv.Client())

	items, err := c.Shopping(context.Background(), "phone")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ShoppingItem{Title: "Phone", Price: "$999", Link: "https://shop.example", ImageURL: "https://img.example"}, items[0])

	news, err := c.News(context.Background(), "ai")
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Wire", news[0].Source)
}

func TestSerperClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewSerperClientWithClient("k", srv.URL, srv.Client()).Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "403")

	_, err = NewSerperClientWithClient("", srv.URL, srv.Client()).Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "API key")
}

func TestBraveClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/res/v1/web/search", r.URL.Path)
		assert.Equal(t, "go lang", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		assert.Equal(t, "token", r.Header.Get("X-Subscription-Token"))
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"Go","url":"https://go.dev"},{"title":"Empty","url":""}]}}`))
	}))
	defer srv.Close()

	c := NewBraveClientWithClient("token", srv.URL, srv.Client())
	results, err := c.Search(context.Background(), "go lang", 3)
	require.NoError(t, err)
	assert.Equal(t, []entity.SearchResult{{Title: "Go", URL: "https://go.dev"}}, results)
}

func TestBraveClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewBraveClientWithClient("token", srv.URL, srv.Client()).Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "429")
}
