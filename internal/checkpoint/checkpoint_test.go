package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRecord() *Record {
	depth := 3
	return &Record{
		Status: StatusRunning,
		Config: CrawlConfig{
			StartURL:  "https://example.com/",
			MaxPages:  100,
			MaxDepth:  &depth,
			RateLimit: 2.5,
		},
		Progress: Progress{
			PagesCrawled: 10,
			StartedAt:    time.Now().UTC().Add(-time.Minute),
		},
		VisitedURLs: []string{"https://example.com/", "https://example.com/a"},
		Queue: []Entry{
			{URL: "https://example.com/b", Depth: 1},
			{URL: "https://example.com/c", Depth: 2},
		},
	}
}

func TestFileStore_SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	rec := sampleRecord()
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(store.Path())
	if loaded == nil {
		t.Fatal("Load returned nil for valid checkpoint")
	}
	if loaded.Version != Version {
		t.Errorf("Version = %d", loaded.Version)
	}
	if loaded.Status != StatusRunning {
		t.Errorf("Status = %s", loaded.Status)
	}
	if loaded.Config.StartURL != rec.Config.StartURL {
		t.Errorf("StartURL = %q", loaded.Config.StartURL)
	}
	if loaded.Config.MaxDepth == nil || *loaded.Config.MaxDepth != 3 {
		t.Errorf("MaxDepth = %v", loaded.Config.MaxDepth)
	}
	if len(loaded.VisitedURLs) != 2 || len(loaded.Queue) != 2 {
		t.Errorf("visited/queue = %d/%d", len(loaded.VisitedURLs), len(loaded.Queue))
	}
	if loaded.Queue[0].URL != "https://example.com/b" || loaded.Queue[0].Depth != 1 {
		t.Errorf("Queue[0] = %+v", loaded.Queue[0])
	}
	if loaded.Progress.LastUpdated.IsZero() {
		t.Error("Save should stamp LastUpdated")
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(sampleRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestLoad_AbsentFile(t *testing.T) {
	if rec := Load(filepath.Join(t.TempDir(), FileName)); rec != nil {
		t.Error("Load of absent file should return nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	os.WriteFile(path, []byte("{not json"), 0o644)

	if rec := Load(path); rec != nil {
		t.Error("Load of malformed file should return nil")
	}
}

func TestLoad_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"no version", `{"status":"running","config":{"start_url":"https://e.com"},"progress":{},"visited_urls":[],"queue":[]}`},
		{"wrong version", `{"version":99,"status":"running","config":{"start_url":"https://e.com"},"progress":{},"visited_urls":[],"queue":[]}`},
		{"no status", `{"version":1,"config":{"start_url":"https://e.com"},"progress":{},"visited_urls":[],"queue":[]}`},
		{"bad status", `{"version":1,"status":"exploded","config":{"start_url":"https://e.com"},"progress":{},"visited_urls":[],"queue":[]}`},
		{"no config", `{"version":1,"status":"running","progress":{},"visited_urls":[],"queue":[]}`},
		{"empty start url", `{"version":1,"status":"running","config":{"start_url":""},"progress":{},"visited_urls":[],"queue":[]}`},
		{"no visited", `{"version":1,"status":"running","config":{"start_url":"https://e.com"},"progress":{},"queue":[]}`},
		{"no queue", `{"version":1,"status":"running","config":{"start_url":"https://e.com"},"progress":{},"visited_urls":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			os.WriteFile(path, []byte(tt.json), 0o644)
			if rec := Load(path); rec != nil {
				t.Error("Load should return nil for invalid checkpoint")
			}
		})
	}
}

func TestLoad_EmptyCollectionsAreValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `{"version":1,"status":"completed","config":{"start_url":"https://e.com"},"progress":{"pages_crawled":0},"visited_urls":[],"queue":[]}`
	os.WriteFile(path, []byte(doc), 0o644)

	rec := Load(path)
	if rec == nil {
		t.Fatal("empty visited/queue should still load")
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %s", rec.Status)
	}
}
