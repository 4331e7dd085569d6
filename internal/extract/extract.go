// Package extract parses rendered HTML into SEO metadata. Extraction is
// a pure function over already-fetched content and never touches the
// network.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Metadata holds page-level SEO signals parsed from one document.
type Metadata struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Canonical        string   `json:"canonical,omitempty"`
	Robots           string   `json:"robots,omitempty"`
	Lang             string   `json:"lang,omitempty"`
	H1               []string `json:"h1,omitempty"`
	H2Count          int      `json:"h2_count"`
	WordCount        int      `json:"word_count"`
	ImagesMissingAlt int      `json:"images_missing_alt"`
	Links            []string `json:"links,omitempty"`
	StatusCode       int      `json:"status_code"`
	LoadTimeMS       int64    `json:"load_time_ms"`
	ContentType      string   `json:"content_type,omitempty"`
}

// Extract parses the HTML of one page into Metadata. Discovered links
// are resolved against pageURL (honoring <base href>), stripped of
// fragments, deduplicated, and limited to http(s) targets.
func Extract(pageURL, html string, statusCode int, loadTime time.Duration, headers map[string]string) (*Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(href); err == nil {
			base = b
		}
	}

	meta := &Metadata{
		StatusCode: statusCode,
		LoadTimeMS: loadTime.Milliseconds(),
	}
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			meta.ContentType = v
		}
	}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Lang = strings.TrimSpace(lang)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		switch strings.ToLower(name) {
		case "description":
			if meta.Description == "" {
				meta.Description = strings.TrimSpace(content)
			}
		case "robots":
			if meta.Robots == "" {
				meta.Robots = strings.TrimSpace(content)
			}
		}
	})

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			meta.Canonical = u.String()
		}
	}

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			meta.H1 = append(meta.H1, text)
		}
	})
	meta.H2Count = doc.Find("h2").Length()

	meta.WordCount = len(strings.Fields(doc.Find("body").Text()))

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, ok := s.Attr("alt")
		if !ok || strings.TrimSpace(alt) == "" {
			meta.ImagesMissingAlt++
		}
	})

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		meta.Links = append(meta.Links, link)
	})

	return meta, nil
}

// resolveLink resolves one href against the document base and reports
// whether it is a crawlable http(s) URL.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "#"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
