package index

import (
	"strings"
	"sync"
)

// Index maps normalized terms to posting lists of post IDs. It is owned by
// the feed service and shared across request goroutines; all access goes
// through the RWMutex, so lookups see either all of an Add call's postings
// or none of them.
//
// Postings are append-only. Deleted posts are not removed; readers filter
// dangling IDs against the durable store instead (the store's existence
// check, not the index, decides what a search returns).
type Index struct {
	mu       sync.RWMutex
	postings map[string][]string
	posts    int
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		postings: make(map[string][]string),
	}
}

// Add tokenizes text and appends id to the posting list of every resulting
// term. Terms repeated within one text contribute a single posting. Safe for
// concurrent use with Lookup and other Add calls.
func (ix *Index) Add(id, text string) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return
	}

	terms := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		terms[tok] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for term := range terms {
		ix.postings[term] = append(ix.postings[term], id)
	}
	ix.posts++
}

// Lookup case-folds term and returns a copy of its posting list. Unknown
// terms yield an empty slice. The copy keeps callers from observing later
// appends through a shared backing array.
func (ix *Index) Lookup(term string) []string {
	term = strings.ToLower(term)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	list := ix.postings[term]
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// TermCount returns the number of distinct terms currently indexed.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// PostCount returns the number of Add calls that produced at least one term.
func (ix *Index) PostCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.posts
}
