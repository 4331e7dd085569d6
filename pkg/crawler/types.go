package crawler

import (
	"time"

	"github.com/seolens/seolens/internal/enrich"
	"github.com/seolens/seolens/internal/extract"
)

// PageResult holds everything collected for one crawled page.
type PageResult struct {
	URL           string             `json:"url"`
	FinalURL      string             `json:"final_url"`
	StatusCode    int                `json:"status_code"`
	FetchDuration time.Duration      `json:"fetch_duration"`
	Links         []string           `json:"links,omitempty"`
	HTML          string             `json:"html,omitempty"`
	Meta          *extract.Metadata  `json:"meta,omitempty"`
	Performance   *enrich.PerfSample `json:"performance,omitempty"`
}

// Summary describes a finished (or interrupted) crawl.
type Summary struct {
	StartURL  string        `json:"start_url"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Resumed   bool          `json:"resumed"`
}
