package crawler

import (
	"fmt"
	"testing"

	"github.com/seolens/seolens/internal/checkpoint"
)

func TestFrontier_FIFO(t *testing.T) {
	f := newFrontier()
	f.Push("https://e.com/a", 0)
	f.Push("https://e.com/b", 1)
	f.Push("https://e.com/c", 1)

	for i, want := range []string{"https://e.com/a", "https://e.com/b", "https://e.com/c"} {
		e, ok := f.Pop()
		if !ok {
			t.Fatalf("Pop %d: empty", i)
		}
		if e.URL != want {
			t.Errorf("Pop %d = %q, want %q", i, e.URL, want)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Error("Pop on empty frontier should fail")
	}
}

func TestFrontier_DedupWhileQueued(t *testing.T) {
	f := newFrontier()
	if !f.Push("https://e.com/a", 0) {
		t.Fatal("first push rejected")
	}
	if f.Push("https://e.com/a", 2) {
		t.Error("duplicate push accepted")
	}
	if f.Len() != 1 {
		t.Errorf("Len = %d, want 1", f.Len())
	}

	// Once popped the URL may be queued again; the visited set is what
	// prevents refetching.
	f.Pop()
	if !f.Push("https://e.com/a", 2) {
		t.Error("push after pop rejected")
	}
}

func TestFrontier_SnapshotRestore(t *testing.T) {
	f := newFrontier()
	f.Push("https://e.com/a", 0)
	f.Push("https://e.com/b", 1)
	f.Pop()

	snap := f.Snapshot()
	if len(snap) != 1 || snap[0].URL != "https://e.com/b" || snap[0].Depth != 1 {
		t.Fatalf("Snapshot = %+v", snap)
	}

	g := newFrontier()
	g.Restore(snap)
	if g.Len() != 1 {
		t.Fatalf("restored Len = %d", g.Len())
	}
	e, _ := g.Pop()
	if e.URL != "https://e.com/b" || e.Depth != 1 {
		t.Errorf("restored entry = %+v", e)
	}
}

func TestFrontier_RestoreReplaces(t *testing.T) {
	f := newFrontier()
	f.Push("https://e.com/old", 0)
	f.Restore([]checkpoint.Entry{{URL: "https://e.com/new", Depth: 3}})

	if f.Len() != 1 {
		t.Fatalf("Len = %d after restore", f.Len())
	}
	e, _ := f.Pop()
	if e.URL != "https://e.com/new" {
		t.Errorf("entry = %+v", e)
	}
}

func TestFrontier_LargeChurn(t *testing.T) {
	f := newFrontier()
	for i := 0; i < 5000; i++ {
		f.Push(fmt.Sprintf("https://e.com/%d", i), 0)
	}
	for i := 0; i < 5000; i++ {
		e, ok := f.Pop()
		if !ok {
			t.Fatalf("Pop %d: empty", i)
		}
		if want := fmt.Sprintf("https://e.com/%d", i); e.URL != want {
			t.Fatalf("Pop %d = %q, want %q", i, e.URL, want)
		}
	}
	if f.Len() != 0 {
		t.Errorf("Len = %d after draining", f.Len())
	}
}

func TestVisitedSet_AddHas(t *testing.T) {
	v := newVisitedSet(100)

	if !v.Add("https://e.com/a") {
		t.Error("first Add returned false")
	}
	if v.Add("https://e.com/a") {
		t.Error("second Add returned true")
	}
	if !v.Has("https://e.com/a") {
		t.Error("Has missed an added URL")
	}
	if v.Has("https://e.com/b") {
		t.Error("Has reported a never-added URL")
	}
	if v.Len() != 1 {
		t.Errorf("Len = %d", v.Len())
	}
}

func TestVisitedSet_URLsSorted(t *testing.T) {
	v := newVisitedSet(10)
	v.Add("https://e.com/c")
	v.Add("https://e.com/a")
	v.Add("https://e.com/b")

	urls := v.URLs()
	want := []string{"https://e.com/a", "https://e.com/b", "https://e.com/c"}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("URLs = %v", urls)
		}
	}
}

func TestVisitedSet_Restore(t *testing.T) {
	v := newVisitedSet(10)
	v.Restore([]string{"https://e.com/a", "https://e.com/b"})

	if v.Len() != 2 || !v.Has("https://e.com/a") || !v.Has("https://e.com/b") {
		t.Errorf("restore failed: len=%d", v.Len())
	}
}

func TestVisitedSet_ExactUnderLoad(t *testing.T) {
	v := newVisitedSet(100)
	for i := 0; i < 10000; i++ {
		url := fmt.Sprintf("https://e.com/%d", i)
		if !v.Add(url) {
			t.Fatalf("Add(%q) returned false for a new URL", url)
		}
	}
	if v.Len() != 10000 {
		t.Errorf("Len = %d, want 10000", v.Len())
	}
	if v.Has("https://e.com/10001") {
		t.Error("Has reported a never-added URL")
	}
}
