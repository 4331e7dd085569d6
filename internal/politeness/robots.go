package politeness

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsCache fetches and caches robots.txt rules per host. Rules are
// fetched at most once per host; fetch failures and non-200 responses
// are cached as a nil entry, which allows everything.
type RobotsCache struct {
	mu        sync.Mutex
	client    *http.Client
	data      map[string]*robotstxt.RobotsData
	userAgent string
}

// NewRobotsCache creates a robots cache with the given fetch timeout
// and user agent string.
func NewRobotsCache(timeout time.Duration, userAgent string) *RobotsCache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RobotsCache{
		client:    &http.Client{Timeout: timeout},
		data:      make(map[string]*robotstxt.RobotsData),
		userAgent: userAgent,
	}
}

// Allow reports whether the given URL may be fetched according to the
// host's robots.txt. Unknown hosts trigger a fetch. A host whose rules
// could not be retrieved allows all paths.
func (c *RobotsCache) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	c.mu.Lock()
	data, ok := c.data[u.Host]
	if !ok {
		data = c.fetch(u.Scheme, u.Host)
		c.data[u.Host] = data
	}
	c.mu.Unlock()

	if data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return data.FindGroup(c.userAgent).Test(path)
}

// fetch retrieves robots.txt for a host. Called with the mutex held;
// robots fetches are rare and a stampede per host is worse than a
// short serialization.
func (c *RobotsCache) fetch(scheme, host string) *robotstxt.RobotsData {
	if scheme == "" {
		scheme = "https"
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
