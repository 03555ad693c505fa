// Package tools holds the functions the model may call while answering.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"answer-engine/internal/adapter/client"
	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// Registry returns the static tool table. serper may be nil, in which case
// the shopping and news tools report that they are unavailable.
func Registry(serper *client.SerperClient) []repository.Tool {
	h := &handlers{serper: serper, logger: slog.Default().With("component", "tools")}
	return []repository.Tool{
		{
			Spec: entity.ToolSpec{
				Name:        "search_location",
				Description: "Finds the location details based on a place name.",
				Params: []entity.ToolParam{
					{Name: "query", Description: "Location or place to search for, e.g., 'Eiffel Tower Paris'", Required: true},
				},
			},
			Handler: h.searchLocation,
		},
		{
			Spec: entity.ToolSpec{
				Name:        "search_shopping",
				Description: "Finds shopping items related to a product query.",
				Params: []entity.ToolParam{
					{Name: "query", Description: "Product name to search for shopping, e.g., 'iPhone 15 Pro'", Required: true},
				},
			},
			Handler: h.searchShopping,
		},
		{
			Spec: entity.ToolSpec{
				Name:        "get_stock_info",
				Description: "Fetches stock market information for a given ticker symbol.",
				Params: []entity.ToolParam{
					{Name: "symbol", Description: "Stock symbol, e.g., 'AAPL', 'TSLA', 'GOOG'", Required: true},
				},
			},
			Handler: h.getStockInfo,
		},
		{
			Spec: entity.ToolSpec{
				Name:        "search_news",
				Description: "Finds the latest news articles for a topic.",
				Params: []entity.ToolParam{
					{Name: "query", Description: "Topic to search news about, e.g., 'Artificial Intelligence'", Required: true},
				},
			},
			Handler: h.searchNews,
		},
	}
}

type handlers struct {
	serper *client.SerperClient
	logger *slog.Logger
}

func (h *handlers) searchLocation(_ context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"query":    query,
		"maps_url": "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(query),
	}, nil
}

func (h *handlers) searchShopping(ctx context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	if h.serper == nil {
		return map[string]any{"error": "Shopping search is not configured."}, nil
	}
	items, err := h.serper.Shopping(ctx, query)
	if err != nil {
		h.logger.Error("shopping search failed", "err", err)
		return map[string]any{"error": "Error fetching shopping results."}, nil
	}
	if len(items) == 0 {
		return map[string]any{"error": "No shopping results found."}, nil
	}
	top := items[0]
	price := top.Price
	if price == "" {
		price = "N/A"
	}
	var image any
	if top.ImageURL != "" {
		image = top.ImageURL
	}
	return map[string]any{
		"title":     top.Title,
		"price":     price,
		"link":      top.Link,
		"image_url": image,
	}, nil
}

func (h *handlers) getStockInfo(_ context.Context, args map[string]any) (any, error) {
	symbol, err := stringArg(args, "symbol")
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("You can view live stock price for %s at https://www.tradingview.com/symbols/%s/",
		symbol, strings.ToUpper(symbol)), nil
}

func (h *handlers) searchNews(ctx context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	if h.serper == nil {
		return map[string]any{"articles": []any{}, "error": "News search is not configured."}, nil
	}
	news, err := h.serper.News(ctx, query)
	if err != nil {
		h.logger.Error("news search failed", "err", err)
		return map[string]any{"articles": []any{}, "error": "Error fetching news results."}, nil
	}
	if len(news) == 0 {
		return map[string]any{"articles": []any{}, "error": "No news articles found."}, nil
	}
	a := news[0]
	article := map[string]any{
		"title":   a.Title,
		"source":  orDefault(a.Source, "Unknown"),
		"date":    orDefault(a.Date, "N/A"),
		"link":    a.Link,
		"snippet": a.Snippet,
	}
	return map[string]any{"articles": []any{article}}, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing argument %q", name)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", name)
	}
	return s, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
