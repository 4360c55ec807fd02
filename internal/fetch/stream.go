package fetch

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// StreamSource reads statuses from an HTTP streaming endpoint authenticated with an OAuth2 token.
type StreamSource struct {
	URL     string
	Limiter *rate.Limiter // nil means unthrottled
	Client  *http.Client  // base transport; nil uses http.DefaultClient
}

// NewStreamSource creates a stream source consuming at most statusesPerSecond
// statuses per second; zero or less disables throttling.
func NewStreamSource(url string, statusesPerSecond float64) *StreamSource {
	limit := rate.Inf
	if statusesPerSecond > 0 {
		limit = rate.Limit(statusesPerSecond)
	}
	return &StreamSource{
		URL:     url,
		Limiter: rate.NewLimiter(limit, 1),
	}
}

// Stream implements Source. A non-200 response ends the stream with an error.
func (s *StreamSource) Stream(ctx context.Context, token *oauth2.Token, handle func(text string) bool) error {
	if s.Client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.Client)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("Connected to status stream %s (status %d)", s.URL, resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	return decodeStatuses(ctx, resp.Body, s.Limiter, handle)
}
