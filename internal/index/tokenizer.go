// Package index implements the in-memory inverted index over post content
// and the tokenizer that feeds it. The index is a best-effort side table:
// the durable store stays the source of truth, and the index is rebuilt
// from it at process start.
package index

import "strings"

// Tokenize lower-cases text and splits it on runs of whitespace. It performs
// no stemming, stop-word removal, or punctuation stripping, so tokens keep
// any attached punctuation ("world!" is a distinct term from "world").
//
// Runs of whitespace never produce empty tokens; leading and trailing
// whitespace is ignored. Whitespace-only input yields an empty slice.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
