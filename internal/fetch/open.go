package fetch

import (
	"log"
	"net/http"

	"github.com/gcbaptista/go-dupfinder/config"
)

// DefaultStreamURL is the public sample stream used when no source is configured.
const DefaultStreamURL = "https://stream.twitter.com/1.1/statuses/sample.json"

// NewSource builds the status source described by settings. A source file
// takes precedence; otherwise the stream URL (or DefaultStreamURL) is used.
func NewSource(settings config.FetchSettings) Source {
	if settings.SourceFile != "" {
		log.Printf("Reading statuses from file %s", settings.SourceFile)
		return FileSource{Path: settings.SourceFile}
	}

	url := settings.StreamURL
	if url == "" {
		url = DefaultStreamURL
	}
	source := NewStreamSource(url, settings.StatusesPerSecond)
	source.Client = &http.Client{Timeout: settings.Timeout()}
	log.Printf("Reading statuses from stream %s", url)
	return source
}
