package entity

type SearchResult struct {
	Title string
	URL   string
}

// Document is the extracted text of one scraped search result.
type Document struct {
	Title string
	Link  string
	Text  string
}

// Passage is a ranked context fragment. Slices of passages are ordered best
// match first.
type Passage struct {
	Text     string
	Title    string
	Link     string
	Score    float64
	Metadata map[string]any
}

// Retrieval is the output of the retrieval stage.
type Retrieval struct {
	Outcome  Outcome
	Query    string // rephrased query used for search and ranking
	Context  string
	Sources  []Source
	Passages []Passage
}
