// Package fetch collects a bounded batch of statuses from an upstream stream.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// maxLineSize bounds a single status line read from a stream.
const maxLineSize = 1 << 20

// Source is an upstream stream of status texts.
// Stream calls handle for every status until handle returns false, the stream
// ends, or an error occurs.
type Source interface {
	Stream(ctx context.Context, token *oauth2.Token, handle func(text string) bool) error
}

// SliceSource streams a fixed list of texts.
type SliceSource []string

// Stream implements Source.
func (s SliceSource) Stream(ctx context.Context, _ *oauth2.Token, handle func(text string) bool) error {
	for _, text := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !handle(text) {
			return nil
		}
	}
	return nil
}

// FileSource streams newline-delimited JSON statuses from a file.
type FileSource struct {
	Path string
}

// Stream implements Source.
func (f FileSource) Stream(ctx context.Context, _ *oauth2.Token, handle func(text string) bool) error {
	file, err := os.Open(f.Path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return fmt.Errorf("opening status file: %w", err)
	}
	defer file.Close()

	return decodeStatuses(ctx, file, nil, handle)
}

// status covers the v1.1 status payload (with extended tweets) and the v2 "data" envelope.
type status struct {
	Text          string `json:"text"`
	ExtendedTweet *struct {
		FullText string `json:"full_text"`
	} `json:"extended_tweet"`
	Data *struct {
		Text string `json:"text"`
	} `json:"data"`
}

func (s status) text() string {
	switch {
	case s.ExtendedTweet != nil && s.ExtendedTweet.FullText != "":
		return s.ExtendedTweet.FullText
	case s.Text != "":
		return s.Text
	case s.Data != nil:
		return s.Data.Text
	default:
		return ""
	}
}

// decodeStatuses reads one JSON object per line. Blank keep-alive lines and
// messages without text (deletes, limit notices) are skipped.
func decodeStatuses(ctx context.Context, r io.Reader, limiter *rate.Limiter, handle func(text string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var st status
		if err := json.Unmarshal(line, &st); err != nil {
			return fmt.Errorf("decoding status: %w", err)
		}
		text := st.text()
		if text == "" {
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if !handle(text) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}
