package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"answer-engine/internal/domain/entity"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxPageBytes = 2 << 20
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// skipped holds elements whose content never counts as page text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Iframe:   true,
	atom.Noscript: true,
	atom.Svg:      true,
}

// HTTPScraper downloads pages and extracts their visible text.
type HTTPScraper struct {
	client *http.Client
}

func NewHTTPScraper(timeout time.Duration) *HTTPScraper {
	return &HTTPScraper{client: &http.Client{Timeout: timeout}}
}

func (s *HTTPScraper) FetchAndExtract(ctx context.Context, url string) (string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", entity.ErrFetchFailure)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: http %d from %s", entity.ErrFetchFailure, resp.StatusCode, trimmed)
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrFetchFailure, err)
	}
	return text, nil
}

// ExtractText returns the visible text of an HTML document with runs of
// whitespace collapsed to single spaces.
func ExtractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	depth := 0 // nesting inside skipped elements
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.Join(strings.Fields(sb.String()), " "), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipped[atom.Lookup(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipped[atom.Lookup(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}
