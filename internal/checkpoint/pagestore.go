package checkpoint

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/seolens/seolens/internal/extract"
)

// PageRecord is the persisted form of one crawled page. Records are
// written immediately when a fetch completes so an interrupted crawl
// loses at most in-flight pages.
type PageRecord struct {
	URL             string            `json:"url"`
	FinalURL        string            `json:"final_url"`
	StatusCode      int               `json:"status_code"`
	FetchDurationMS int64             `json:"fetch_duration_ms"`
	Links           []string          `json:"links,omitempty"`
	HTML            string            `json:"html,omitempty"`
	Meta            *extract.Metadata `json:"meta,omitempty"`
	FetchedAt       time.Time         `json:"fetched_at"`
}

// PageStore persists per-page results.
type PageStore interface {
	SavePage(rec *PageRecord) error
	LoadPage(url string) (*PageRecord, error)
	LoadAll() ([]*PageRecord, error)
	Close() error
}

// FilePageStore writes one JSON file per page under <dir>/pages.
type FilePageStore struct {
	dir string
}

// NewFilePageStore creates a file-backed page store rooted at dir.
func NewFilePageStore(dir string) (*FilePageStore, error) {
	pagesDir := filepath.Join(dir, "pages")
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pages dir: %w", err)
	}
	return &FilePageStore{dir: pagesDir}, nil
}

// SavePage writes the record atomically to a file named from its URL.
func (s *FilePageStore) SavePage(rec *PageRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	target := filepath.Join(s.dir, SanitizeURL(rec.URL)+".json")
	tmp, err := os.CreateTemp(s.dir, ".page-*")
	if err != nil {
		return fmt.Errorf("create temp page: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close page: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename page: %w", err)
	}
	return nil
}

// LoadPage reads one record by URL. Returns nil, nil when absent.
func (s *FilePageStore) LoadPage(url string) (*PageRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, SanitizeURL(url)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read page: %w", err)
	}
	var rec PageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal page: %w", err)
	}
	return &rec, nil
}

// LoadAll reads every stored page record. Unreadable files are skipped.
func (s *FilePageStore) LoadAll() ([]*PageRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read pages dir: %w", err)
	}

	var records []*PageRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec PageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Close is a no-op for the file store.
func (s *FilePageStore) Close() error {
	return nil
}

// SanitizeURL converts a URL into a safe file name: scheme stripped,
// disallowed characters replaced, long names truncated with a hash
// suffix to stay unique.
func SanitizeURL(rawURL string) string {
	name := rawURL
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(name, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name = b.String()
	if name == "" {
		name = "page"
	}

	if len(name) > 150 {
		h := fnv.New32a()
		h.Write([]byte(rawURL))
		name = fmt.Sprintf("%s-%08x", name[:120], h.Sum32())
	}
	return name
}

// pagesBucket is the bbolt bucket holding page records keyed by URL.
var pagesBucket = []byte("pages")

// BoltPageStore persists page records in a single bbolt database file.
// It avoids the one-file-per-page fan-out on large crawls.
type BoltPageStore struct {
	db *bolt.DB
}

// NewBoltPageStore opens (or creates) the page database at
// <dir>/pages.db.
func NewBoltPageStore(dir string) (*BoltPageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "pages.db"), 0o600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open page db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pagesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pages bucket: %w", err)
	}

	return &BoltPageStore{db: db}, nil
}

// SavePage writes the record keyed by its URL.
func (s *BoltPageStore) SavePage(rec *PageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBucket).Put([]byte(rec.URL), data)
	})
}

// LoadPage reads one record by URL. Returns nil, nil when absent.
func (s *BoltPageStore) LoadPage(url string) (*PageRecord, error) {
	var rec *PageRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(pagesBucket).Get([]byte(url))
		if data == nil {
			return nil
		}
		rec = &PageRecord{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	return rec, nil
}

// LoadAll reads every stored page record.
func (s *BoltPageStore) LoadAll() ([]*PageRecord, error) {
	var records []*PageRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBucket).ForEach(func(_, v []byte) error {
			var rec PageRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (s *BoltPageStore) Close() error {
	return s.db.Close()
}
