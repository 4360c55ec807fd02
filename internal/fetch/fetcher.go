package fetch

import (
	"context"
	"log"

	"golang.org/x/oauth2"
)

// DefaultLimit is the number of statuses collected per run.
const DefaultLimit = 200

// Fetcher collects at most Limit statuses from a Source.
type Fetcher struct {
	Source Source
	Limit  int
}

// NewFetcher creates a Fetcher; a limit of zero or less uses DefaultLimit.
func NewFetcher(source Source, limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Fetcher{Source: source, Limit: limit}
}

// Fetch returns the collected texts in stream order. Once Limit texts are held
// no more are requested. Upstream errors are logged and end the stream; whatever
// was collected so far is returned.
func (f *Fetcher) Fetch(ctx context.Context, token *oauth2.Token) []string {
	texts := make([]string, 0, f.Limit)

	err := f.Source.Stream(ctx, token, func(text string) bool {
		texts = append(texts, text)
		return len(texts) < f.Limit
	})
	if err != nil {
		log.Printf("Error with status stream after %d statuses, treating as end of stream: %v", len(texts), err)
	}

	log.Printf("Fetched %d statuses (limit %d)", len(texts), f.Limit)
	return texts
}
