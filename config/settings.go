// Package config provides configuration structures for the duplicate finder.
// It defines fetch, indexing, store and server settings and loads them from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the top-level service configuration.
type Settings struct {
	Server   ServerSettings   `toml:"server" json:"server"`
	Fetch    FetchSettings    `toml:"fetch" json:"fetch"`
	Indexing IndexingSettings `toml:"indexing" json:"indexing"`
	Store    StoreSettings    `toml:"store" json:"store"`
}

// ServerSettings configures the HTTP surface.
type ServerSettings struct {
	Port           string `toml:"port" json:"port"`
	DataDir        string `toml:"data_dir" json:"data_dir"`
	MaxRequestSize int64  `toml:"max_request_size" json:"max_request_size"` // bytes
	SessionIdleMin int    `toml:"session_idle_minutes" json:"session_idle_minutes"`
}

// FetchSettings configures the bounded fetch from the upstream status stream.
type FetchSettings struct {
	StreamURL         string  `toml:"stream_url" json:"stream_url"`                   // newline-delimited JSON status stream
	SourceFile        string  `toml:"source_file" json:"source_file"`                 // offline alternative to StreamURL
	Limit             int     `toml:"limit" json:"limit"`                             // maximum statuses collected per run
	ReportEvery       int     `toml:"report_every" json:"report_every"`               // GetNext progress interval
	StatusesPerSecond float64 `toml:"statuses_per_second" json:"statuses_per_second"` // 0 means unthrottled
	TimeoutSeconds    int     `toml:"timeout_seconds" json:"timeout_seconds"`         // upper bound on one fetch
}

// IndexingSettings configures LSH matrix creation and the indexing worker pool.
type IndexingSettings struct {
	Rows          int    `toml:"rows" json:"rows"`
	Bands         int    `toml:"bands" json:"bands"`
	ShingleType   string `toml:"shingle_type" json:"shingle_type"`
	MinhashModulo int    `toml:"minhash_modulo" json:"minhash_modulo"`
	ReportEvery   int    `toml:"report_every" json:"report_every"` // documents between progress logs
	Workers       int    `toml:"workers" json:"workers"`
	QueueSize     int    `toml:"queue_size" json:"queue_size"`
	MaxMatrices   int    `toml:"max_matrices" json:"max_matrices"` // 0 means unbounded
}

// StoreSettings selects and configures the record/document store.
type StoreSettings struct {
	Driver string `toml:"driver" json:"driver"` // "memory" or "sqlite"
	Path   string `toml:"path" json:"path"`     // snapshot file (memory) or database file (sqlite)
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Default returns settings with all defaults applied.
func Default() Settings {
	var s Settings
	s.ApplyDefaults()
	return s
}

// Load reads settings from a TOML file and applies defaults for unset values.
// An empty path returns the defaults.
func Load(path string) (Settings, error) {
	var s Settings
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	s.ApplyDefaults()
	return s, nil
}

// ApplyEnv overrides settings from DUPFINDER_* environment variables.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DUPFINDER_PORT"); v != "" {
		s.Server.Port = v
	}
	if v := getenv("DUPFINDER_DATA_DIR"); v != "" {
		s.Server.DataDir = v
	}
	if v := getenv("DUPFINDER_STREAM_URL"); v != "" {
		s.Fetch.StreamURL = v
	}
	if v := getenv("DUPFINDER_STORE_DRIVER"); v != "" {
		s.Store.Driver = v
	}
	if v := getenv("DUPFINDER_FETCH_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DUPFINDER_FETCH_LIMIT %q: %w", v, err)
		}
		s.Fetch.Limit = limit
	}
	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (s *Settings) ApplyDefaults() {
	if s.Server.Port == "" {
		s.Server.Port = "8080"
	}
	if s.Server.DataDir == "" {
		s.Server.DataDir = "./dupfinder_data"
	}
	if s.Server.MaxRequestSize == 0 {
		s.Server.MaxRequestSize = 1 << 20
	}
	if s.Server.SessionIdleMin == 0 {
		s.Server.SessionIdleMin = 60
	}

	if s.Fetch.Limit == 0 {
		s.Fetch.Limit = 200
	}
	if s.Fetch.ReportEvery == 0 {
		s.Fetch.ReportEvery = 40
	}
	if s.Fetch.TimeoutSeconds == 0 {
		s.Fetch.TimeoutSeconds = 120
	}

	if s.Indexing.Rows == 0 {
		s.Indexing.Rows = 5
	}
	if s.Indexing.Bands == 0 {
		s.Indexing.Bands = 15
	}
	if s.Indexing.ShingleType == "" {
		s.Indexing.ShingleType = "c4"
	}
	if s.Indexing.MinhashModulo == 0 {
		s.Indexing.MinhashModulo = 7001
	}
	if s.Indexing.ReportEvery == 0 {
		s.Indexing.ReportEvery = 80
	}
	if s.Indexing.Workers == 0 {
		s.Indexing.Workers = 2
	}
	if s.Indexing.QueueSize == 0 {
		s.Indexing.QueueSize = 64
	}

	if s.Store.Driver == "" {
		s.Store.Driver = DriverMemory
	}
}

// Timeout returns the fetch timeout as a duration.
func (f FetchSettings) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// SessionIdleTimeout returns how long an unused session is kept.
func (s ServerSettings) SessionIdleTimeout() time.Duration {
	return time.Duration(s.SessionIdleMin) * time.Minute
}

// StorePath returns the store path, defaulting to a file inside the data directory.
func (s *Settings) StorePath() string {
	if s.Store.Path != "" {
		return s.Store.Path
	}
	if s.Store.Driver == DriverSQLite {
		return filepath.Join(s.Server.DataDir, "dupfinder.db")
	}
	return filepath.Join(s.Server.DataDir, "store.gob")
}

// Validate checks settings and returns a list of problems; an empty list means valid.
func (s *Settings) Validate() []string {
	var problems []string

	if strings.TrimSpace(s.Server.Port) == "" {
		problems = append(problems, "server.port cannot be empty")
	}
	if s.Fetch.Limit < 1 {
		problems = append(problems, "fetch.limit must be at least 1")
	}
	if s.Server.SessionIdleMin < 1 {
		problems = append(problems, "server.session_idle_minutes must be at least 1")
	}
	if s.Fetch.ReportEvery < 1 {
		problems = append(problems, "fetch.report_every must be at least 1")
	}
	if s.Fetch.StatusesPerSecond < 0 {
		problems = append(problems, "fetch.statuses_per_second cannot be negative")
	}
	if s.Fetch.StreamURL != "" && s.Fetch.SourceFile != "" {
		problems = append(problems, "fetch.stream_url and fetch.source_file are mutually exclusive")
	}

	if s.Indexing.Rows < 1 || s.Indexing.Bands < 1 {
		problems = append(problems, "indexing.rows and indexing.bands must be at least 1")
	}
	if s.Indexing.MinhashModulo < 1 {
		problems = append(problems, "indexing.minhash_modulo must be at least 1")
	}
	if len(s.Indexing.ShingleType) < 2 || (s.Indexing.ShingleType[0] != 'c' && s.Indexing.ShingleType[0] != 'w') {
		problems = append(problems, "indexing.shingle_type must look like 'c4' or 'w2'")
	}
	if s.Indexing.ReportEvery < 1 {
		problems = append(problems, "indexing.report_every must be at least 1")
	}
	if s.Indexing.Workers < 1 {
		problems = append(problems, "indexing.workers must be at least 1")
	}
	if s.Indexing.QueueSize < 1 {
		problems = append(problems, "indexing.queue_size must be at least 1")
	}

	if s.Store.Driver != DriverMemory && s.Store.Driver != DriverSQLite {
		problems = append(problems, "store.driver must be '"+DriverMemory+"' or '"+DriverSQLite+"'")
	}

	return problems
}
