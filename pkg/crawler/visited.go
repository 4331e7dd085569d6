package crawler

import (
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
)

// visitedSet tracks URLs that have entered the crawl. A bloom filter
// fronts the exact set so the common "never seen" case skips the map
// lookup; membership answers are always exact. Owned by the scheduler
// goroutine.
type visitedSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newVisitedSet(expected uint) *visitedSet {
	if expected == 0 {
		expected = 10000
	}
	return &visitedSet{
		filter: bloom.NewWithEstimates(expected, 0.01),
		exact:  make(map[string]struct{}),
	}
}

// Add marks a URL visited. Returns true when the URL was new.
func (v *visitedSet) Add(url string) bool {
	if v.filter.TestString(url) {
		if _, ok := v.exact[url]; ok {
			return false
		}
	}
	v.filter.AddString(url)
	v.exact[url] = struct{}{}
	return true
}

// Has reports exact membership.
func (v *visitedSet) Has(url string) bool {
	if !v.filter.TestString(url) {
		return false
	}
	_, ok := v.exact[url]
	return ok
}

// Len returns the number of visited URLs.
func (v *visitedSet) Len() int {
	return len(v.exact)
}

// URLs returns the visited URLs sorted, for deterministic checkpoints.
func (v *visitedSet) URLs() []string {
	out := make([]string, 0, len(v.exact))
	for url := range v.exact {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// Restore refills the set from a checkpoint.
func (v *visitedSet) Restore(urls []string) {
	for _, url := range urls {
		v.Add(url)
	}
}
