package politeness

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsCache_Disallow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cache := NewRobotsCache(5*time.Second, "seolens/1.0")

	if !cache.Allow(server.URL + "/public/page") {
		t.Error("allowed path should pass")
	}
	if cache.Allow(server.URL + "/private/secret") {
		t.Error("disallowed path should be blocked")
	}
}

func TestRobotsCache_FetchedOncePerHost(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
		}
		w.Write([]byte("User-agent: *\nDisallow:\n"))
	}))
	defer server.Close()

	cache := NewRobotsCache(5*time.Second, "seolens/1.0")

	for i := 0; i < 5; i++ {
		cache.Allow(server.URL + "/page")
	}

	if got := fetches.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

func TestRobotsCache_MissingFileAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	cache := NewRobotsCache(5*time.Second, "seolens/1.0")

	if !cache.Allow(server.URL + "/anything") {
		t.Error("missing robots.txt should allow all")
	}
}

func TestRobotsCache_UnreachableHostAllowsAll(t *testing.T) {
	cache := NewRobotsCache(500*time.Millisecond, "seolens/1.0")

	if !cache.Allow("http://127.0.0.1:1/page") {
		t.Error("unreachable host should allow all")
	}
}

func TestRobotsCache_InvalidURLAllows(t *testing.T) {
	cache := NewRobotsCache(time.Second, "seolens/1.0")

	if !cache.Allow("::not a url::") {
		t.Error("unparseable URL should not be blocked by robots")
	}
}
