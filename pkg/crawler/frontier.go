package crawler

import "github.com/seolens/seolens/internal/checkpoint"

// frontier is the BFS queue: strict FIFO with member dedup so a URL is
// never queued twice. It is owned by the scheduler goroutine and needs
// no locking.
type frontier struct {
	entries []checkpoint.Entry
	head    int
	member  map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{member: make(map[string]struct{})}
}

// Push appends an entry unless its URL is already queued. Returns true
// when the entry was added.
func (f *frontier) Push(url string, depth int) bool {
	if _, ok := f.member[url]; ok {
		return false
	}
	f.member[url] = struct{}{}
	f.entries = append(f.entries, checkpoint.Entry{URL: url, Depth: depth})
	return true
}

// Pop removes and returns the oldest entry.
func (f *frontier) Pop() (checkpoint.Entry, bool) {
	if f.head >= len(f.entries) {
		return checkpoint.Entry{}, false
	}
	e := f.entries[f.head]
	f.head++
	delete(f.member, e.URL)

	// Reclaim the consumed prefix once it dominates the backing slice.
	if f.head > 1024 && f.head*2 >= len(f.entries) {
		f.entries = append([]checkpoint.Entry(nil), f.entries[f.head:]...)
		f.head = 0
	}
	return e, true
}

// Len returns the number of queued entries.
func (f *frontier) Len() int {
	return len(f.entries) - f.head
}

// Snapshot copies the remaining entries in order, for checkpointing.
func (f *frontier) Snapshot() []checkpoint.Entry {
	out := make([]checkpoint.Entry, f.Len())
	copy(out, f.entries[f.head:])
	return out
}

// Restore replaces the frontier contents from a checkpoint.
func (f *frontier) Restore(entries []checkpoint.Entry) {
	f.entries = f.entries[:0]
	f.head = 0
	f.member = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		f.Push(e.URL, e.Depth)
	}
}
