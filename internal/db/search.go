package db

// SearchResult represents one search hit over piece notes.
type SearchResult struct {
	Type    string
	Slug    string
	Snippet string
}
