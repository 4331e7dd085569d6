// Package checkpoint persists crawl state for crash-safe resume.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the checkpoint schema version this build reads and writes.
const Version = 1

// FileName is the checkpoint file name inside the output directory.
const FileName = "checkpoint.json"

// Status describes how a crawl ended up in the checkpoint.
type Status string

const (
	// StatusRunning is written by periodic mid-crawl checkpoints.
	StatusRunning Status = "running"
	// StatusPaused is written when the crawl is interrupted.
	StatusPaused Status = "paused"
	// StatusCompleted is written when the crawl finishes normally.
	StatusCompleted Status = "completed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// CrawlConfig captures the configuration a checkpoint was written under.
// Resume validates the stored start URL against the requested one.
type CrawlConfig struct {
	StartURL  string  `json:"start_url"`
	MaxPages  int     `json:"max_pages"`
	MaxDepth  *int    `json:"max_depth"`
	RateLimit float64 `json:"rate_limit"`
}

// Progress tracks crawl counters and timestamps.
type Progress struct {
	PagesCrawled int       `json:"pages_crawled"`
	StartedAt    time.Time `json:"started_at"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Entry is one frontier element: a URL and the depth it was discovered at.
type Entry struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// Record is the full checkpoint document. visited_urls and queue
// together cover every URL that ever entered the crawl.
type Record struct {
	Version     int         `json:"version"`
	Status      Status      `json:"status"`
	Config      CrawlConfig `json:"config"`
	Progress    Progress    `json:"progress"`
	VisitedURLs []string    `json:"visited_urls"`
	Queue       []Entry     `json:"queue"`
}

// FileStore writes checkpoint records atomically to a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a checkpoint store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Save writes the record atomically: marshal to a temp file in the same
// directory, then rename over the target. A crash mid-write leaves the
// previous checkpoint intact.
func (s *FileStore) Save(rec *Record) error {
	rec.Version = Version
	rec.Progress.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// rawRecord mirrors Record with pointer fields so Load can tell a
// missing required field from a zero value.
type rawRecord struct {
	Version     *int         `json:"version"`
	Status      *Status      `json:"status"`
	Config      *CrawlConfig `json:"config"`
	Progress    *Progress    `json:"progress"`
	VisitedURLs *[]string    `json:"visited_urls"`
	Queue       *[]Entry     `json:"queue"`
}

// Load reads a checkpoint from path. It returns nil when the file is
// absent, unreadable, malformed, or fails required-field validation; a
// nil record means start fresh, never an error.
func Load(path string) *Record {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	if raw.Version == nil || *raw.Version != Version {
		return nil
	}
	if raw.Status == nil || !raw.Status.Valid() {
		return nil
	}
	if raw.Config == nil || raw.Config.StartURL == "" {
		return nil
	}
	if raw.Progress == nil || raw.VisitedURLs == nil || raw.Queue == nil {
		return nil
	}

	return &Record{
		Version:     *raw.Version,
		Status:      *raw.Status,
		Config:      *raw.Config,
		Progress:    *raw.Progress,
		VisitedURLs: *raw.VisitedURLs,
		Queue:       *raw.Queue,
	}
}
